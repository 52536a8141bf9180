package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/consigna/consigna/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCutoffSweep cancels drafts left open past each store's cutoff.
	TaskCutoffSweep = "consignment:cutoff_sweep"
	// TaskOutboxRelay publishes pending notifications from the outbox.
	TaskOutboxRelay = "notify:outbox_relay"
	// TaskIdempotencyPurge drops expired submit idempotency keys.
	TaskIdempotencyPurge = "consignment:idempotency_purge"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// CutoffSweepPayload optionally pins the instant the sweep evaluates cutoffs against.
// An empty payload uses the worker clock.
type CutoffSweepPayload struct {
	At string `json:"at,omitempty"`
}

// NewCutoffSweepTask constructs the sweep task. at is RFC3339 or empty.
func NewCutoffSweepTask(at string) (*asynq.Task, error) {
	body, err := json.Marshal(CutoffSweepPayload{At: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCutoffSweep, body, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}

// NewOutboxRelayTask constructs the outbox relay task.
func NewOutboxRelayTask() *asynq.Task {
	return asynq.NewTask(TaskOutboxRelay, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(0))
}

// NewIdempotencyPurgeTask constructs the key purge task.
func NewIdempotencyPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyPurge, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
}
