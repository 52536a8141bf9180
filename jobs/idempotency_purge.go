package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/consigna/consigna/internal/jobs"
)

const defaultIdempotencyRetention = 24 * time.Hour

// KeyPurger deletes idempotency keys older than a retention window.
type KeyPurger interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencyPurgeJob keeps the idempotency_keys table bounded. A key only needs to outlive
// client retries of the same submission.
type IdempotencyPurgeJob struct {
	Purger    KeyPurger
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewIdempotencyPurgeJob constructs the job handler.
func NewIdempotencyPurgeJob(purger KeyPurger, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyPurgeJob {
	if retention <= 0 {
		retention = defaultIdempotencyRetention
	}
	return &IdempotencyPurgeJob{Purger: purger, Retention: retention, Logger: logger, Metrics: metrics}
}

// Handle runs one purge.
func (j *IdempotencyPurgeJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Purger == nil {
		return errors.New("idempotency purge: purger not configured")
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskIdempotencyPurge)
	err := tracker.End(j.Purger.Cleanup(ctx, j.Retention))
	if err != nil {
		logger := j.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("idempotency purge", slog.String("job", TaskIdempotencyPurge), slog.Any("error", err))
	}
	return err
}
