package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rentcrm/internal/domain"
	"rentcrm/internal/metrics"
	"rentcrm/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Outbox task types.
const (
	TaskEmail        = "email"
	TaskTelegram     = "telegram"
	TaskSheetsUpsert = "sheets_upsert"
)

// ErrPermanent marks a handler failure that must not be retried.
var ErrPermanent = errors.New("permanent failure")

// TaskHandler delivers a single outbox task.
type TaskHandler func(ctx context.Context, task models.OutboxTask) error

// OutboxWorker persists side effects to the outbox table and delivers them
// through registered handlers. Tasks are picked from the in-memory queue,
// then Redis, then by polling the table; delivery is at least once.
type OutboxWorker struct {
	repo          domain.OutboxRepository
	redis         *redis.Client
	handlers      map[string]TaskHandler
	retryPolicy   RetryPolicy
	queue         chan models.OutboxTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

type Options struct {
	PollInterval time.Duration
	BatchSize    int
}

// NewOutboxWorker builds a worker with sane defaults. redisClient may be nil.
func NewOutboxWorker(repo domain.OutboxRepository, redisClient *redis.Client, retry RetryPolicy, opts Options, logger *zerolog.Logger) *OutboxWorker {
	retry = retry.withDefaults()
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &OutboxWorker{
		repo:          repo,
		redis:         redisClient,
		handlers:      make(map[string]TaskHandler),
		retryPolicy:   retry,
		queue:         make(chan models.OutboxTask, models.WorkerQueueSize),
		redisQueueKey: "outbox:queue",
		deadLetterKey: "outbox:deadletter",
		pollInterval:  opts.PollInterval,
		batchSize:     opts.BatchSize,
		logger:        logger,
	}
}

// Handle registers the handler for taskType. Call before Start.
func (w *OutboxWorker) Handle(taskType string, h TaskHandler) {
	w.handlers[taskType] = h
}

// Enqueue persists the task and schedules it via Redis or the in-memory queue.
func (w *OutboxWorker) Enqueue(ctx context.Context, taskType, bookingID string, payload interface{}) error {
	if taskType == "" {
		return errors.New("task type is required")
	}
	if _, ok := w.handlers[taskType]; !ok {
		return fmt.Errorf("no handler for task type %q", taskType)
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.OutboxTask{
		TaskType:  taskType,
		BookingID: bookingID,
		Payload:   string(payloadBytes),
		Status:    models.TaskStatusPending,
	}
	if err := w.repo.CreateOutboxTask(ctx, &task); err != nil {
		return fmt.Errorf("persist outbox task: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, w.redisQueueKey, task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("Redis push failed, falling back to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("In-memory queue full, task left to polling")
	}
	return nil
}

// Start launches the main loop; it returns when ctx is done.
func (w *OutboxWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("Outbox worker started")
	defer w.logger.Info().Msg("Outbox worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			if fresh, ok := w.claimQueued(ctx, t); ok {
				w.processTask(ctx, &fresh)
			}
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			if fresh, ok := w.claimQueued(ctx, t); ok {
				w.processTask(ctx, &fresh)
			}
			continue
		}

		tasks, err := w.repo.GetPendingOutboxTasks(ctx, w.batchSize)
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Error().Err(err).Msg("Failed to fetch pending outbox tasks")
			}
			w.sleep(ctx)
			continue
		}
		if len(tasks) == 0 {
			w.sleep(ctx)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *OutboxWorker) sleep(ctx context.Context) {
	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (w *OutboxWorker) tryLocalQueue() (models.OutboxTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.OutboxTask{}, false
	}
}

func (w *OutboxWorker) tryRedis(ctx context.Context) (models.OutboxTask, bool) {
	if w.redis == nil {
		return models.OutboxTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, redis.Nil) {
			return models.OutboxTask{}, false
		}
		w.logger.Error().Err(err).Msg("Redis BRPOP failed")
		return models.OutboxTask{}, false
	}
	if len(res) != 2 {
		return models.OutboxTask{}, false
	}
	var task models.OutboxTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("Failed to decode redis task")
		return models.OutboxTask{}, false
	}
	return task, true
}

// claimQueued reloads a queued task from the table. A task that polling
// already delivered or scheduled for later is dropped; on a lookup error the
// row stays for the poller.
func (w *OutboxWorker) claimQueued(ctx context.Context, t models.OutboxTask) (models.OutboxTask, bool) {
	fresh, err := w.repo.GetOutboxTask(ctx, t.ID)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Warn().Err(err).Int64("task_id", t.ID).Msg("Queued task lookup failed, left to polling")
		}
		return models.OutboxTask{}, false
	}
	switch fresh.Status {
	case models.TaskStatusPending:
	case models.TaskStatusRetry:
		if fresh.NextRetryAt != nil && fresh.NextRetryAt.After(time.Now()) {
			return models.OutboxTask{}, false
		}
	default:
		w.logger.Debug().Int64("task_id", t.ID).Str("status", fresh.Status).Msg("Skipping queued task already handled")
		return models.OutboxTask{}, false
	}
	return *fresh, true
}

func (w *OutboxWorker) processTask(ctx context.Context, task *models.OutboxTask) {
	log := w.logger.With().Int64("task_id", task.ID).Str("task_type", task.TaskType).Str("booking_id", task.BookingID).Logger()

	handler, ok := w.handlers[task.TaskType]
	if !ok {
		w.failTask(ctx, task, fmt.Errorf("unknown task type: %s", task.TaskType))
		return
	}

	err := handler(ctx, *task)
	metrics.ObserveNotification(task.TaskType, err)
	if err != nil {
		log.Warn().Err(err).Int("attempt", task.RetryCount+1).Msg("Outbox task failed")
		if errors.Is(err, ErrPermanent) {
			w.failTask(ctx, task, err)
			return
		}
		w.retryOrFail(ctx, task, err)
		return
	}

	if err := w.repo.UpdateOutboxTaskStatus(ctx, task.ID, models.TaskStatusCompleted, "", nil); err != nil {
		log.Error().Err(err).Msg("Failed to mark outbox task completed")
	}
}

func (w *OutboxWorker) retryOrFail(ctx context.Context, task *models.OutboxTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	nextTime := w.retryPolicy.NextAttempt(time.Now(), attempt)
	if err := w.repo.UpdateOutboxTaskStatus(ctx, task.ID, models.TaskStatusRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark outbox task for retry")
	}
}

func (w *OutboxWorker) failTask(ctx context.Context, task *models.OutboxTask, cause error) {
	if err := w.repo.UpdateOutboxTaskStatus(ctx, task.ID, models.TaskStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark outbox task failed")
	}
	if w.redis == nil {
		return
	}
	if err := w.pushRedis(ctx, w.deadLetterKey, *task); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Dead-letter push failed")
	}
}

func (w *OutboxWorker) pushRedis(ctx context.Context, key string, task models.OutboxTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}

// DeadLetters returns tasks that exhausted their retries, newest first.
func (w *OutboxWorker) DeadLetters(ctx context.Context) ([]models.OutboxTask, error) {
	return w.repo.GetFailedOutboxTasks(ctx)
}
