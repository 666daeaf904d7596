// Package worker mirrors booking changes into Google Sheets in the
// background, so a slow or failing Sheets API never blocks a booking.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"carwash/internal/domain"
	"carwash/internal/metrics"
	"carwash/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Task types.
const (
	TaskUpsert       = "upsert"
	TaskDelete       = "delete"
	TaskUpdateStatus = "update_status"
)

// sync_queue.status values.
const (
	statusPending   = "pending"
	statusRetry     = "retry"
	statusCompleted = "completed"
	statusFailed    = "failed"
)

const (
	defaultQueueKey      = "carwash:sheets:queue"
	defaultDeadLetterKey = "carwash:sheets:deadletter"
)

// sheetTaskPayload is persisted in SyncTask.Payload as JSON.
type sheetTaskPayload struct {
	BookingID string               `json:"booking_id"`
	Booking   *models.Booking      `json:"booking,omitempty"`
	Status    models.BookingStatus `json:"status,omitempty"`
}

// TaskStore is the durable copy of every task; the queues only carry hints.
type TaskStore interface {
	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// SheetsWorker applies sync tasks to the Bookings sheet. Tasks come from the
// in-process queue first, then the shared Redis list, then a poll of the
// sync_queue table for retries and anything the queues lost.
type SheetsWorker struct {
	db     TaskStore
	sheets domain.SheetsWriter
	redis  *redis.Client
	retry  RetryPolicy
	local  chan models.SyncTask

	queueKey      string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        zerolog.Logger
}

var _ domain.SyncWorker = (*SheetsWorker)(nil)

func NewSheetsWorker(db TaskStore, sheets domain.SheetsWriter, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *SheetsWorker {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "sheets_worker").Logger()
	}

	return &SheetsWorker{
		db:            db,
		sheets:        sheets,
		redis:         redisClient,
		retry:         retry.normalized(),
		local:         make(chan models.SyncTask, 128),
		queueKey:      defaultQueueKey,
		deadLetterKey: defaultDeadLetterKey,
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        l,
	}
}

// EnqueueTask records a task and hands it to a queue. The booking id falls
// back to booking.ID when empty.
func (w *SheetsWorker) EnqueueTask(ctx context.Context, taskType, bookingID string, booking *models.Booking, status models.BookingStatus) error {
	if taskType == "" {
		return errors.New("task type is required")
	}
	if bookingID == "" && booking != nil {
		bookingID = booking.ID
	}
	if bookingID == "" {
		return errors.New("booking id is required")
	}

	raw, err := json.Marshal(sheetTaskPayload{BookingID: bookingID, Booking: booking, Status: status})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.SyncTask{
		TaskType:  taskType,
		BookingID: bookingID,
		Payload:   string(raw),
		Status:    statusPending,
		CreatedAt: time.Now(),
	}
	if err := w.db.CreateSyncTask(ctx, &task); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}

	if w.redis != nil {
		err := w.pushList(ctx, w.queueKey, task)
		if err == nil {
			return nil
		}
		w.logger.Warn().Err(err).Str("booking_id", bookingID).Msg("redis queue push failed, using local queue")
	}

	select {
	case w.local <- task:
	default:
		// the table poll picks it up
		w.logger.Warn().Int64("task_id", task.ID).Msg("local queue full")
	}
	return nil
}

// Start runs until ctx is cancelled.
func (w *SheetsWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("sheets worker started")
	defer w.logger.Info().Msg("sheets worker stopped")

	w.requeueFailed(ctx)

	for ctx.Err() == nil {
		if task, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &task)
			continue
		}
		if task, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &task)
			continue
		}
		if n := w.drainTable(ctx); n == 0 {
			w.idle(ctx)
		}
	}
}

// requeueFailed gives tasks abandoned by an earlier run one more attempt.
// Their retry count is kept, so a second failure abandons them again.
func (w *SheetsWorker) requeueFailed(ctx context.Context) int {
	failed, err := w.db.GetFailedSyncTasks(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("load failed sync tasks")
		return 0
	}
	requeued := 0
	for _, task := range failed {
		if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, statusPending, "", nil); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("requeue failed task")
			continue
		}
		requeued++
	}
	if requeued > 0 {
		w.logger.Info().Int("tasks", requeued).Msg("failed sheet tasks requeued")
	}
	return requeued
}

// drainTable processes one batch of due tasks and returns its size.
func (w *SheetsWorker) drainTable(ctx context.Context) int {
	tasks, err := w.db.GetPendingSyncTasks(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("load pending sync tasks")
		}
		return 0
	}
	for i := range tasks {
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks)
}

func (w *SheetsWorker) idle(ctx context.Context) {
	t := time.NewTimer(w.pollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *SheetsWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.local:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *SheetsWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.queueKey).Result()
	switch {
	case errors.Is(err, redis.Nil), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return models.SyncTask{}, false
	case err != nil:
		w.logger.Error().Err(err).Msg("redis queue pop")
		return models.SyncTask{}, false
	case len(res) != 2:
		return models.SyncTask{}, false
	}

	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode queued task")
		return models.SyncTask{}, false
	}
	return task, true
}

// processTask applies a task and records the outcome in the table.
func (w *SheetsWorker) processTask(ctx context.Context, task *models.SyncTask) {
	payload, err := w.decodePayload(task.Payload)
	if err != nil {
		w.settleFailed(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.handleSheetTask(ctx, task.TaskType, payload); err != nil {
		attempt := task.RetryCount + 1
		if w.retry.Exhausted(attempt) {
			w.settleFailed(ctx, task, err)
			return
		}
		w.settleRetry(ctx, task, attempt, err)
		return
	}

	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, statusCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark task completed")
	}
	metrics.IncSheetsTask(task.TaskType, statusCompleted)
	w.logger.Debug().Str("task", task.TaskType).Str("booking_id", task.BookingID).Msg("sheet updated")
}

func (w *SheetsWorker) handleSheetTask(ctx context.Context, taskType string, p sheetTaskPayload) error {
	switch taskType {
	case TaskUpsert:
		if p.Booking == nil {
			return errors.New("booking payload missing")
		}
		return w.sheets.UpsertBooking(ctx, p.Booking)
	case TaskUpdateStatus:
		if p.BookingID == "" || p.Status == "" {
			return errors.New("booking id or status missing")
		}
		return w.sheets.UpdateBookingStatus(ctx, p.BookingID, p.Status)
	case TaskDelete:
		if p.BookingID == "" {
			return errors.New("booking id missing")
		}
		return w.sheets.DeleteBookingRow(ctx, p.BookingID)
	}
	return fmt.Errorf("unknown task type: %s", taskType)
}

func (w *SheetsWorker) settleRetry(ctx context.Context, task *models.SyncTask, attempt int, cause error) {
	next := time.Now().Add(w.retry.NextDelay(attempt))
	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, statusRetry, cause.Error(), &next); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark task for retry")
	}
	metrics.IncSheetsTask(task.TaskType, statusRetry)
	w.logger.Warn().Err(cause).
		Int64("task_id", task.ID).
		Str("booking_id", task.BookingID).
		Int("attempt", attempt).
		Time("next_retry_at", next).
		Msg("sheet update failed, will retry")
}

// settleFailed gives up on a task and copies it to the dead-letter list.
func (w *SheetsWorker) settleFailed(ctx context.Context, task *models.SyncTask, cause error) {
	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, statusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark task failed")
	}
	metrics.IncSheetsTask(task.TaskType, statusFailed)
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("booking_id", task.BookingID).Msg("sheet update abandoned")

	if w.redis == nil {
		return
	}
	if err := w.pushList(ctx, w.deadLetterKey, *task); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("dead-letter push")
	}
}

func (w *SheetsWorker) decodePayload(raw string) (sheetTaskPayload, error) {
	var p sheetTaskPayload
	err := json.Unmarshal([]byte(raw), &p)
	return p, err
}

func (w *SheetsWorker) pushList(ctx context.Context, key string, task models.SyncTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}
