package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/consigna/consigna/internal/jobs"
	"github.com/consigna/consigna/internal/notify"
)

// OutboxFlusher drains one batch of the notification outbox.
type OutboxFlusher interface {
	Flush(ctx context.Context) (notify.FlushResult, error)
}

// OutboxRelayJob publishes pending notifications on a schedule.
type OutboxRelayJob struct {
	Relay   OutboxFlusher
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewOutboxRelayJob constructs the job handler.
func NewOutboxRelayJob(relay OutboxFlusher, logger *slog.Logger, metrics *jobmetrics.Metrics) *OutboxRelayJob {
	return &OutboxRelayJob{Relay: relay, Logger: logger, Metrics: metrics}
}

// Handle flushes one batch.
func (j *OutboxRelayJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Relay == nil {
		return errors.New("outbox relay: relay not configured")
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskOutboxRelay)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	res, err := j.Relay.Flush(ctx)
	metrics.AddNotifications("sent", res.Sent)
	metrics.AddNotifications("retried", res.Retried)
	metrics.AddNotifications("dead", res.Dead)
	if err != nil {
		resultErr = err
		j.log().Error("outbox relay", slog.Any("error", err))
		return resultErr
	}
	if res.Claimed > 0 {
		j.log().Info("outbox relayed",
			slog.Int("claimed", res.Claimed),
			slog.Int("sent", res.Sent),
			slog.Int("retried", res.Retried),
			slog.Int("dead", res.Dead))
	}
	return resultErr
}

func (j *OutboxRelayJob) log() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskOutboxRelay))
	}
	return slog.Default().With(slog.String("job", TaskOutboxRelay))
}
