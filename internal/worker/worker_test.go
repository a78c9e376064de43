package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"rentcrm/internal/database"
	"rentcrm/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emailPayload struct {
	To string `json:"to"`
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func loadTask(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetryValid bool) {
	t.Helper()
	var next *time.Time
	err := db.QueryRowContext(context.Background(),
		`SELECT status, retry_count, next_retry_at FROM outbox WHERE id = ?`, id,
	).Scan(&status, &retryCount, &next)
	require.NoError(t, err)
	return status, retryCount, next != nil
}

func TestRetryPolicy_NextDelay(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffFactor: 2}
	assert.Equal(t, time.Second, p.NextDelay(0))
	assert.Equal(t, time.Second, p.NextDelay(1))
	assert.Equal(t, 2*time.Second, p.NextDelay(2))
	assert.Equal(t, 4*time.Second, p.NextDelay(3))
	assert.Equal(t, 5*time.Second, p.NextDelay(4))
	assert.Equal(t, time.Second, RetryPolicy{}.NextDelay(1))
}

func TestRetryPolicy_DefaultsAndExhaustion(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3}.withDefaults()
	assert.Equal(t, 3, p.MaxRetries)
	assert.Equal(t, DefaultRetryPolicy().InitialDelay, p.InitialDelay)
	assert.False(t, p.Exhausted(2))
	assert.True(t, p.Exhausted(3))

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, now.Add(4*time.Second), p.NextAttempt(now, 2))
	assert.Equal(t, 5*time.Minute, p.NextDelay(50))
}

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	w := NewOutboxWorker(db, nil, RetryPolicy{}, Options{}, nil)

	var got []emailPayload
	w.Handle(TaskEmail, func(_ context.Context, task models.OutboxTask) error {
		var p emailPayload
		require.NoError(t, json.Unmarshal([]byte(task.Payload), &p))
		got = append(got, p)
		return nil
	})

	ctx := context.Background()
	require.NoError(t, w.Enqueue(ctx, TaskEmail, "b-1", emailPayload{To: "jane@example.com"}))

	task, ok := w.tryLocalQueue()
	require.True(t, ok)
	w.processTask(ctx, &task)

	status, retries, next := loadTask(t, db, task.ID)
	assert.Equal(t, models.TaskStatusCompleted, status)
	assert.Equal(t, 0, retries)
	assert.False(t, next)
	assert.Equal(t, []emailPayload{{To: "jane@example.com"}}, got)
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	w := NewOutboxWorker(db, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second}, Options{}, nil)
	w.Handle(TaskEmail, func(context.Context, models.OutboxTask) error { return errors.New("smtp down") })

	ctx := context.Background()
	require.NoError(t, w.Enqueue(ctx, TaskEmail, "b-1", emailPayload{To: "x"}))
	task, ok := w.tryLocalQueue()
	require.True(t, ok)
	w.processTask(ctx, &task)

	status, retries, next := loadTask(t, db, task.ID)
	assert.Equal(t, models.TaskStatusRetry, status)
	assert.Equal(t, 1, retries)
	assert.True(t, next)
}

func TestProcessTaskExhaustsRetries(t *testing.T) {
	db := newTestDB(t)
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	w := NewOutboxWorker(db, client, RetryPolicy{MaxRetries: 2}, Options{}, nil)
	w.Handle(TaskEmail, func(context.Context, models.OutboxTask) error { return errors.New("still down") })

	ctx := context.Background()
	require.NoError(t, w.Enqueue(ctx, TaskEmail, "b-1", emailPayload{To: "x"}))

	task, ok := w.tryRedis(ctx)
	require.True(t, ok, "task should go through redis when available")
	task.RetryCount = 1
	w.processTask(ctx, &task)

	status, _, _ := loadTask(t, db, task.ID)
	assert.Equal(t, models.TaskStatusFailed, status)

	dead, err := client.LLen(ctx, "outbox:deadletter").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)

	failed, err := w.DeadLetters(ctx)
	require.NoError(t, err)
	assert.Len(t, failed, 1)
}

func TestProcessTaskPermanentFailure(t *testing.T) {
	db := newTestDB(t)
	w := NewOutboxWorker(db, nil, RetryPolicy{MaxRetries: 5}, Options{}, nil)
	w.Handle(TaskEmail, func(context.Context, models.OutboxTask) error {
		return errors.Join(ErrPermanent, errors.New("bad address"))
	})

	ctx := context.Background()
	require.NoError(t, w.Enqueue(ctx, TaskEmail, "b-1", emailPayload{To: "x"}))
	task, _ := w.tryLocalQueue()
	w.processTask(ctx, &task)

	status, retries, _ := loadTask(t, db, task.ID)
	assert.Equal(t, models.TaskStatusFailed, status)
	assert.Equal(t, 0, retries)
}

func TestEnqueueValidation(t *testing.T) {
	db := newTestDB(t)
	w := NewOutboxWorker(db, nil, RetryPolicy{}, Options{}, nil)

	assert.Error(t, w.Enqueue(context.Background(), "", "b-1", nil))
	assert.Error(t, w.Enqueue(context.Background(), "unknown", "b-1", nil))
}

func TestStartPollsPendingTasks(t *testing.T) {
	db := newTestDB(t)
	w := NewOutboxWorker(db, nil, RetryPolicy{}, Options{PollInterval: 10 * time.Millisecond}, nil)

	done := make(chan string, 1)
	w.Handle(TaskSheetsUpsert, func(_ context.Context, task models.OutboxTask) error {
		done <- task.BookingID
		return nil
	})

	// written directly so only polling can find it
	task := &models.OutboxTask{TaskType: TaskSheetsUpsert, BookingID: "b-9", Payload: "{}"}
	require.NoError(t, db.CreateOutboxTask(context.Background(), task))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	select {
	case id := <-done:
		assert.Equal(t, "b-9", id)
	case <-time.After(2 * time.Second):
		t.Fatal("task was not polled")
	}
}

func TestStartSkipsQueuedTaskDeliveredByPoll(t *testing.T) {
	db := newTestDB(t)
	w := NewOutboxWorker(db, nil, RetryPolicy{}, Options{PollInterval: 10 * time.Millisecond}, nil)

	var calls atomic.Int32
	w.Handle(TaskEmail, func(context.Context, models.OutboxTask) error {
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Enqueue(ctx, TaskEmail, "b-1", emailPayload{To: "x"}))

	// the poller wins the race; the copy is still in the memory queue
	pending, err := db.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	w.processTask(ctx, &pending[0])
	require.Len(t, w.queue, 1)

	stopped := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(stopped)
	}()
	require.Eventually(t, func() bool { return len(w.queue) == 0 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-stopped

	assert.Equal(t, int32(1), calls.Load())
}

func TestClaimQueued(t *testing.T) {
	db := newTestDB(t)
	w := NewOutboxWorker(db, nil, RetryPolicy{}, Options{}, nil)
	ctx := context.Background()

	newTask := func() models.OutboxTask {
		task := &models.OutboxTask{TaskType: TaskEmail, BookingID: "b-1", Payload: "{}"}
		require.NoError(t, db.CreateOutboxTask(ctx, task))
		return *task
	}

	pending := newTask()
	fresh, ok := w.claimQueued(ctx, pending)
	require.True(t, ok)
	assert.Equal(t, pending.ID, fresh.ID)

	retried := newTask()
	future := time.Now().UTC().Add(time.Hour)
	require.NoError(t, db.UpdateOutboxTaskStatus(ctx, retried.ID, models.TaskStatusRetry, "boom", &future))
	_, ok = w.claimQueued(ctx, retried)
	assert.False(t, ok, "retry not due yet")

	due := newTask()
	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, db.UpdateOutboxTaskStatus(ctx, due.ID, models.TaskStatusRetry, "boom", &past))
	fresh, ok = w.claimQueued(ctx, due)
	require.True(t, ok)
	assert.Equal(t, 1, fresh.RetryCount, "attempt count comes from the row")

	for _, status := range []string{models.TaskStatusCompleted, models.TaskStatusFailed} {
		done := newTask()
		require.NoError(t, db.UpdateOutboxTaskStatus(ctx, done.ID, status, "", nil))
		_, ok = w.claimQueued(ctx, done)
		assert.False(t, ok, status)
	}

	_, ok = w.claimQueued(ctx, models.OutboxTask{ID: 9999})
	assert.False(t, ok, "missing row")
}
