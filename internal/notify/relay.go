package notify

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultBatchSize  = 100
	defaultMaxRetries = 5
)

// Publisher hands one message to the delivery channel.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// RelayConfig tunes Flush.
type RelayConfig struct {
	BatchSize  int
	MaxRetries int
}

// FlushResult counts what one Flush did.
type FlushResult struct {
	Claimed int `json:"claimed"`
	Sent    int `json:"sent"`
	Retried int `json:"retried"`
	Dead    int `json:"dead"`
}

// Relay moves pending outbox rows to the publisher. Rows are claimed with SKIP LOCKED so
// several relays can run side by side.
type Relay struct {
	store     Store
	publisher Publisher
	cfg       RelayConfig
	logger    *slog.Logger
	clock     func() time.Time
}

// NewRelay constructs a relay.
func NewRelay(store Store, publisher Publisher, cfg RelayConfig, logger *slog.Logger) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{store: store, publisher: publisher, cfg: cfg, logger: logger, clock: time.Now}
}

// Flush publishes one batch. A publish failure is recorded on the row and does not stop the
// batch; rows that exhaust MaxRetries move to failed.
func (r *Relay) Flush(ctx context.Context) (FlushResult, error) {
	var result FlushResult
	err := r.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		batch, err := tx.ClaimPending(ctx, r.cfg.BatchSize)
		if err != nil {
			return err
		}
		result.Claimed = len(batch)
		for _, msg := range batch {
			if err := r.publisher.Publish(ctx, msg); err != nil {
				status, markErr := tx.MarkFailed(ctx, msg, err.Error(), r.cfg.MaxRetries)
				if markErr != nil {
					return markErr
				}
				if status == StatusFailed {
					result.Dead++
					r.logger.Error("notification dropped after retries",
						slog.String("id", msg.ID.String()),
						slog.String("kind", msg.Kind),
						slog.Any("error", err))
				} else {
					result.Retried++
				}
				continue
			}
			if err := tx.MarkSent(ctx, msg, r.clock().UTC()); err != nil {
				return err
			}
			result.Sent++
		}
		return nil
	})
	if err != nil {
		return FlushResult{}, err
	}
	return result, nil
}
