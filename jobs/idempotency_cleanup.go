package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/scentstock/scentstock/internal/jobs"
)

// DefaultIdempotencyRetention is used when neither payload nor job sets a window.
const DefaultIdempotencyRetention = 30 * 24 * time.Hour

// KeyPurger deletes idempotency keys older than the given age.
type KeyPurger interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob keeps the idempotency_keys table bounded.
type IdempotencyCleanupJob struct {
	Store     KeyPurger
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob initialises the cleanup handler.
func NewIdempotencyCleanupJob(store KeyPurger, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{Store: store, Retention: retention, Logger: logger, Metrics: metrics}
}

// Handle purges expired keys.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload IdempotencyCleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("idempotency cleanup: invalid payload: %w", asynq.SkipRetry)
		}
	}
	retention := j.retention(payload)

	tracker := j.metrics().Track(TaskIdempotencyCleanup)
	defer func() {
		err = tracker.End(err)
	}()

	deleted, err := j.Store.Cleanup(ctx, retention)
	if err != nil {
		j.logger().Error("idempotency cleanup failed", slog.Any("error", err))
		return err
	}
	j.metrics().AddItems(TaskIdempotencyCleanup, deleted)
	j.logger().Info("idempotency keys purged",
		slog.Int64("deleted", deleted),
		slog.Duration("retention", retention),
	)
	return nil
}

func (j *IdempotencyCleanupJob) retention(payload IdempotencyCleanupPayload) time.Duration {
	if payload.RetentionHours > 0 {
		return time.Duration(payload.RetentionHours) * time.Hour
	}
	if j.Retention > 0 {
		return j.Retention
	}
	return DefaultIdempotencyRetention
}

func (j *IdempotencyCleanupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *IdempotencyCleanupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
