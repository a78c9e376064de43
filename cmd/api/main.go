package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"rentcrm/internal/api"
	"rentcrm/internal/config"
	"rentcrm/internal/database"
	"rentcrm/internal/domain"
	"rentcrm/internal/events"
	"rentcrm/internal/google"
	"rentcrm/internal/lifecycle"
	"rentcrm/internal/logging"
	"rentcrm/internal/metrics"
	"rentcrm/internal/models"
	"rentcrm/internal/notify"
	"rentcrm/internal/repository"
	"rentcrm/internal/security"
	"rentcrm/internal/service"
	"rentcrm/internal/storage"
	"rentcrm/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var wg sync.WaitGroup
	goRun := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	backup := database.NewBackupService(cfg.Database.Path, cfg.Backup, logging.Component(&logger, "backup"))
	goRun(func() {
		if err := backup.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("backup service stopped")
		}
	})

	bus := events.NewEventBus(logging.Component(&logger, "events"))
	outbox := initOutbox(ctx, cfg, db, redisClient, bus, &logger)
	goRun(func() { outbox.Start(ctx) })

	if cfg.Kafka.Enabled {
		forwarder := events.NewKafkaForwarder(cfg.Kafka, logging.Component(&logger, "kafka"))
		forwarder.Attach(bus)
		goRun(func() { forwarder.Run(ctx) })
	}

	services, err := initServices(ctx, cfg, db, redisClient, bus, &logger)
	if err != nil {
		return err
	}

	grpcServer, err := api.NewGRPCServer(cfg, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("create grpc server")
		return err
	}
	httpServer := api.NewHTTPServer(cfg, services, &logger)

	startMetrics(ctx, cfg, &logger)

	err = startServers(ctx, grpcServer, httpServer, cfg, &logger)
	stop()
	wg.Wait()
	return err
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func loadCompanies(logger *zerolog.Logger) ([]models.RentalCompany, error) {
	companiesPath := os.Getenv("COMPANIES_PATH")
	if companiesPath == "" {
		companiesPath = "configs/companies.yaml"
	}
	data, err := os.ReadFile(companiesPath)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info().Str("companies_path", companiesPath).Msg("no company seed file")
		return nil, nil
	}
	if err != nil {
		logger.Error().Err(err).Str("companies_path", companiesPath).Msg("read companies")
		return nil, err
	}

	var companiesConfig struct {
		Companies []models.RentalCompany `yaml:"companies"`
	}
	if err := yaml.Unmarshal(data, &companiesConfig); err != nil {
		logger.Error().Err(err).Str("companies_path", companiesPath).Msg("parse companies")
		return nil, err
	}
	return companiesConfig.Companies, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initServices(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	bus *events.EventBus,
	logger *zerolog.Logger,
) (api.Services, error) {
	var sessions domain.SessionStore = repository.NewMemorySessionStore()
	if redisClient != nil {
		sessions = repository.NewFailoverSessionStore(
			repository.NewRedisSessionStore(redisClient),
			sessions,
			logging.Component(logger, "sessions"),
		)
	}

	tokens := security.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, time.Duration(cfg.Auth.TokenTTLMin)*time.Minute)
	policy := lifecycle.Policy{AllowCancelledEdits: cfg.Lifecycle.AllowCancelledEdits}

	files, err := storage.NewLocalStorage(cfg.Storage.UploadDir, cfg.App.BaseURL)
	if err != nil {
		logger.Error().Err(err).Str("upload_dir", cfg.Storage.UploadDir).Msg("init upload storage")
		return api.Services{}, err
	}

	companies := service.NewCompanyService(db, logging.Component(logger, "companies"))
	seed, err := loadCompanies(logger)
	if err != nil {
		return api.Services{}, err
	}
	if len(seed) > 0 {
		added, err := companies.Seed(ctx, seed)
		if err != nil {
			return api.Services{}, fmt.Errorf("seed companies: %w", err)
		}
		logger.Info().Int("added", added).Int("total", len(seed)).Msg("rental companies seeded")
	}

	return api.Services{
		Bookings:  service.NewBookingService(db, bus, policy, logging.Component(logger, "bookings")),
		Auth:      service.NewAuthService(db, sessions, tokens, cfg.Auth, logging.Component(logger, "auth")),
		Companies: companies,
		Uploads:   service.NewUploadService(db, files, cfg.Storage, logging.Component(logger, "uploads")),
	}, nil
}

// initOutbox registers a handler for every enabled channel and attaches the
// dispatcher to bus. Channels that fail to initialise are left disabled.
func initOutbox(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	bus *events.EventBus,
	logger *zerolog.Logger,
) *worker.OutboxWorker {
	retry := worker.RetryPolicy{
		MaxRetries:    cfg.Worker.MaxRetries,
		InitialDelay:  time.Duration(cfg.Worker.RetryBaseSec) * time.Second,
		MaxDelay:      time.Duration(cfg.Worker.RetryMaxSec) * time.Second,
		BackoffFactor: 2,
	}
	opts := worker.Options{
		PollInterval: time.Duration(cfg.Worker.PollIntervalSec) * time.Second,
		BatchSize:    cfg.Worker.BatchSize,
	}
	outbox := worker.NewOutboxWorker(db, redisClient, retry, opts, logging.Component(logger, "outbox"))

	var channels notify.Channels

	if cfg.Email.Enabled {
		sender := notify.NewSendGridNotifier(cfg.Email, logging.Component(logger, "email"))
		outbox.Handle(worker.TaskEmail, notify.EmailHandler(sender, cfg.App.BaseURL))
		channels.Email = true
	}

	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegramNotifier(cfg.Telegram, logging.Component(logger, "telegram"))
		if err != nil {
			logger.Warn().Err(err).Msg("telegram init failed, manager alerts disabled")
		} else {
			outbox.Handle(worker.TaskTelegram, notify.TelegramHandler(tg))
			channels.Telegram = true
		}
	}

	if cfg.Google.Enabled {
		if sheet := initGoogleSheets(ctx, cfg, logger); sheet != nil {
			outbox.Handle(worker.TaskSheetsUpsert, google.SyncHandler(db, sheet))
			channels.Sheets = true
		}
	}

	notify.NewDispatcher(outbox, channels, logging.Component(logger, "dispatcher")).Attach(bus)
	logger.Info().
		Bool("email", channels.Email).
		Bool("telegram", channels.Telegram).
		Bool("sheets", channels.Sheets).
		Msg("notification channels configured")
	return outbox
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *google.BookingSheet {
	sheet, err := google.NewBookingSheet(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.BookingSpreadSheetID, cfg.Google.SheetName)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheet.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets unreachable, continuing without sheets")
		return nil
	}
	if err := sheet.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets cache warm-up failed")
	}

	logger.Info().Msg("google sheets connected")
	return sheet
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	go func() {
		if !cfg.GRPC.Enabled {
			return
		}
		if err := grpcServer.Serve(); err != nil {
			logger.Error().Err(err).Msg("grpc server stopped")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		if !cfg.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	logger.Info().Str("grpc_addr", grpcServer.Addr()).Int("http_port", cfg.HTTP.Port).Msg("API server started")

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case serveErr = <-errCh:
		logger.Error().Err(serveErr).Msg("http server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.SetServing(false)
	_ = httpServer.Shutdown(shutdownCtx)
	grpcServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return serveErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
