package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"rentcrm/internal/config"
	"rentcrm/internal/domain"
	"rentcrm/internal/lifecycle"
	"rentcrm/internal/metrics"
	"rentcrm/internal/models"
	"rentcrm/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type BookingManager interface {
	CreateBooking(ctx context.Context, agent domain.Identity, draft *models.Booking) (*models.Booking, error)
	ModifyBooking(ctx context.Context, agent domain.Identity, id string, selection []lifecycle.Selection, expectedVersion *int64) (*models.Booking, error)
	CancelBooking(ctx context.Context, agent domain.Identity, id string, req lifecycle.CancelRequest, expectedVersion *int64) (*models.Booking, error)
	CreateCancelledBooking(ctx context.Context, agent domain.Identity, draft *models.Booking, req lifecycle.CancelRequest) (*models.Booking, error)
	AddNote(ctx context.Context, agent domain.Identity, bookingID, text string) (*models.Note, error)
	EditNote(ctx context.Context, agent domain.Identity, bookingID, noteID, text string) error
	RemoveNote(ctx context.Context, agent domain.Identity, bookingID, noteID string) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context, sort domain.BookingSort) ([]*models.Booking, error)
	ExportBookings(ctx context.Context) ([]*models.Booking, error)
}

type Authenticator interface {
	domain.IdentityVerifier
	Register(ctx context.Context, name, email, password string) (*models.Agent, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Logout(ctx context.Context, identity domain.Identity) error
	Me(ctx context.Context, identity domain.Identity) (*models.Agent, error)
}

type CompanyRegistry interface {
	RegisterCompany(ctx context.Context, name string) (*models.RentalCompany, bool, error)
	ListCompanies(ctx context.Context) ([]*models.RentalCompany, error)
}

type FileUploader interface {
	Upload(ctx context.Context, agent domain.Identity, filename, contentType string, r io.Reader) (*models.Upload, error)
	Open(ctx context.Context, key string) (*models.Upload, io.ReadCloser, error)
	MaxBytes() int64
}

// Services groups the collaborators behind the HTTP API.
type Services struct {
	Bookings  BookingManager
	Auth      Authenticator
	Companies CompanyRegistry
	Uploads   FileUploader
}

// HTTPServer exposes the agent-facing JSON API.
type HTTPServer struct {
	cfg       *config.Config
	svc       Services
	router    *mux.Router
	server    *http.Server
	limiter   *rateLimiter
	auth      *HTTPAuth
	logger    *zerolog.Logger
	now       func() time.Time
	origins   map[string]bool
	anyOrigin bool
}

func NewHTTPServer(cfg *config.Config, svc Services, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	httpLogger := logger.With().Str("component", "http").Logger()

	srv := &HTTPServer{
		cfg:     cfg,
		svc:     svc,
		router:  mux.NewRouter(),
		limiter: newRateLimiter(cfg.RateLimit),
		auth:    NewHTTPAuth(svc.Auth, cfg.Auth.CookieName),
		logger:  &httpLogger,
		now:     time.Now,
		origins: make(map[string]bool),
	}
	for _, o := range cfg.HTTP.AllowedOrigins {
		if o == "*" {
			srv.anyOrigin = true
		}
		srv.origins[strings.TrimRight(o, "/")] = true
	}

	srv.routes()

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes() {
	r := s.router
	r.Use(metricsMiddleware)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	public := r.PathPrefix("/api/v1").Subrouter()
	public.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	public.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	public.HandleFunc("/files/{key}", s.handleFile).Methods(http.MethodGet)

	protected := r.PathPrefix("/api/v1").Subrouter()
	protected.Use(s.auth.Wrap)
	protected.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	protected.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet)

	protected.HandleFunc("/bookings", s.handleListBookings).Methods(http.MethodGet)
	protected.HandleFunc("/bookings", s.handleCreateBooking).Methods(http.MethodPost)
	protected.HandleFunc("/bookings/export", s.handleExport).Methods(http.MethodGet)
	protected.HandleFunc("/bookings/{id}", s.handleGetBooking).Methods(http.MethodGet)
	protected.HandleFunc("/bookings/{id}/modify", s.handleModifyBooking).Methods(http.MethodPost)
	protected.HandleFunc("/bookings/{id}/cancel", s.handleCancelBooking).Methods(http.MethodPost)
	protected.HandleFunc("/bookings/{id}/notes", s.handleAddNote).Methods(http.MethodPost)
	protected.HandleFunc("/bookings/{id}/notes/{noteID}", s.handleEditNote).Methods(http.MethodPut)
	protected.HandleFunc("/bookings/{id}/notes/{noteID}", s.handleRemoveNote).Methods(http.MethodDelete)
	protected.HandleFunc("/cancellations", s.handleCreateCancellation).Methods(http.MethodPost)

	protected.HandleFunc("/companies", s.handleListCompanies).Methods(http.MethodGet)
	protected.HandleFunc("/companies", s.handleRegisterCompany).Methods(http.MethodPost)
	protected.HandleFunc("/uploads", s.handleUpload).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// Handler returns the router wrapped in the common middleware.
func (s *HTTPServer) Handler() http.Handler {
	return s.loggingMiddleware(s.corsMiddleware(s.rateLimitMiddleware(s.router)))
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (s.anyOrigin || s.origins[origin]) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

const requestIDHeader = "X-Request-ID"

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// metricsMiddleware counts requests by route template so ids do not
// become label values.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := "unmatched"
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = r.Method + " " + tpl
			}
		}
		metrics.IncHTTP(endpoint)
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
