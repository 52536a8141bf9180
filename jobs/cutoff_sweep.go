package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/consigna/consigna/internal/cutoff"
	jobmetrics "github.com/consigna/consigna/internal/jobs"
)

// CutoffSweeper is the part of cutoff.Sweeper the job needs.
type CutoffSweeper interface {
	SweepAll(ctx context.Context, now time.Time) (cutoff.Summary, error)
}

// CutoffSweepJob runs the periodic cutoff sweep.
type CutoffSweepJob struct {
	Sweeper CutoffSweeper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewCutoffSweepJob constructs the job handler.
func NewCutoffSweepJob(sweeper CutoffSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *CutoffSweepJob {
	return &CutoffSweepJob{
		Sweeper: sweeper,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one sweep. Individual store failures are reported but do not fail the
// task, since the next scheduled run retries them anyway.
func (j *CutoffSweepJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Sweeper == nil {
		return errors.New("cutoff sweep: sweeper not configured")
	}
	now, err := j.resolveNow(task.Payload())
	if err != nil {
		j.log().Warn("invalid cutoff sweep payload", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	tracker := j.metrics().Track(TaskCutoffSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	summary, err := j.Sweeper.SweepAll(ctx, now)
	if err != nil {
		resultErr = err
		j.log().Error("cutoff sweep", slog.Any("error", err))
		return resultErr
	}
	if summary.Skipped {
		j.log().Info("cutoff sweep skipped, lock held elsewhere")
		return resultErr
	}
	for _, store := range summary.Stores {
		j.metrics().AddCutoffCancellations(store.StoreID, store.Cancelled)
	}
	for _, failure := range summary.Failures {
		j.log().Warn("cutoff sweep store failure", slog.Int64("store_id", failure.StoreID), slog.String("error", failure.Error))
	}
	j.log().Info("cutoff sweep finished",
		slog.Int("stores", summary.StoresProcessed),
		slog.Int("cancelled", summary.TransactionsCancelled),
		slog.Int("failures", len(summary.Failures)),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *CutoffSweepJob) resolveNow(raw []byte) (time.Time, error) {
	var payload CutoffSweepPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return time.Time{}, err
		}
	}
	if payload.At == "" {
		return j.now(), nil
	}
	at, err := time.Parse(time.RFC3339, payload.At)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid at %q", payload.At)
	}
	return at.UTC(), nil
}

func (j *CutoffSweepJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *CutoffSweepJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCutoffSweep))
	}
	return slog.Default().With(slog.String("job", TaskCutoffSweep))
}

func (j *CutoffSweepJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *CutoffSweepJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
