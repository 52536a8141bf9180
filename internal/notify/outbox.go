package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/consigna/consigna/internal/platform/db"
	"github.com/consigna/consigna/internal/shared"
)

// TxStore exposes outbox operations that must share one transaction.
type TxStore interface {
	ClaimPending(ctx context.Context, limit int) ([]Message, error)
	MarkSent(ctx context.Context, msg Message, at time.Time) error
	MarkFailed(ctx context.Context, msg Message, cause string, maxRetries int) (Status, error)
}

// Store persists outbox rows.
type Store interface {
	Enqueue(ctx context.Context, msg Message) error
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
}

// Outbox implements the lifecycle engine's notifier by enqueueing messages for the relay.
type Outbox struct {
	store  Store
	logger *slog.Logger
	clock  func() time.Time
}

// NewOutbox constructs the notifier.
func NewOutbox(store Store, logger *slog.Logger) *Outbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Outbox{store: store, logger: logger, clock: time.Now}
}

// Notify enqueues a message for userID.
func (o *Outbox) Notify(ctx context.Context, userID int64, kind string, payload map[string]any) error {
	msg := NewMessage(userID, kind, payload, o.clock())
	if err := o.store.Enqueue(ctx, msg); err != nil {
		return err
	}
	o.logger.Debug("notification enqueued", slog.String("id", msg.ID.String()), slog.String("kind", kind), slog.Int64("user_id", userID))
	return nil
}

// PGStore is the PostgreSQL outbox.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs the store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

type pgTxStore struct {
	tx pgx.Tx
}

// Enqueue inserts a pending row, joining the caller's transaction when ctx carries one.
func (s *PGStore) Enqueue(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}
	_, err = db.Conn(ctx, s.pool).Exec(ctx, `INSERT INTO notification_outbox (id, user_id, kind, payload, body, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, msg.ID, msg.UserID, msg.Kind, payload, msg.Body, string(StatusPending), msg.CreatedAt)
	if err != nil {
		return shared.NewStorageError("notify: enqueue", err)
	}
	return nil
}

// WithTx runs fn in one transaction.
func (s *PGStore) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &pgTxStore{tx: tx})
	})
}

// ClaimPending locks up to limit pending rows, skipping rows another relay holds.
func (t *pgTxStore) ClaimPending(ctx context.Context, limit int) ([]Message, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, user_id, kind, payload, body, status, retry_count, last_error, created_at
FROM notification_outbox WHERE status = $1 ORDER BY created_at LIMIT $2 FOR UPDATE SKIP LOCKED`, string(StatusPending), limit)
	if err != nil {
		return nil, shared.NewStorageError("notify: claim", err)
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var (
			msg     Message
			payload []byte
			status  string
		)
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.Kind, &payload, &msg.Body, &status, &msg.RetryCount, &msg.LastError, &msg.CreatedAt); err != nil {
			return nil, shared.NewStorageError("notify: scan", err)
		}
		msg.Status = Status(status)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &msg.Payload); err != nil {
				return nil, fmt.Errorf("notify: decode payload %s: %w", msg.ID, err)
			}
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.NewStorageError("notify: claim", err)
	}
	return out, nil
}

func (t *pgTxStore) MarkSent(ctx context.Context, msg Message, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE notification_outbox SET status = $2, sent_at = $3, last_error = NULL WHERE id = $1`,
		msg.ID, string(StatusSent), at)
	if err != nil {
		return shared.NewStorageError("notify: mark sent", err)
	}
	return nil
}

func (t *pgTxStore) MarkFailed(ctx context.Context, msg Message, cause string, maxRetries int) (Status, error) {
	status := nextStatus(msg.RetryCount+1, maxRetries)
	_, err := t.tx.Exec(ctx, `UPDATE notification_outbox SET status = $2, retry_count = retry_count + 1, last_error = $3 WHERE id = $1`,
		msg.ID, string(status), cause)
	if err != nil {
		return msg.Status, shared.NewStorageError("notify: mark failed", err)
	}
	return status, nil
}

func nextStatus(retries, maxRetries int) Status {
	if retries >= maxRetries {
		return StatusFailed
	}
	return StatusPending
}
