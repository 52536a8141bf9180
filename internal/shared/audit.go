package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ActorSystem is the actor id recorded for scheduler-driven changes.
const ActorSystem int64 = 0

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ID         int64          `json:"id"`
	ActorID    int64          `json:"actor_id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	OldValue   map[string]any `json:"old_value,omitempty"`
	NewValue   map[string]any `json:"new_value,omitempty"`
	Reason     *string        `json:"reason,omitempty"`
	At         time.Time      `json:"at"`
}

// AuditLogger writes records into audit_logs. It always uses the pool directly so an
// entry never rides on (or rolls back with) the caller's transaction.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.pool == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.EntityType == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity_type/entity_id")
	}
	oldJSON, err := marshalSnapshot(log.OldValue)
	if err != nil {
		return err
	}
	newJSON, err := marshalSnapshot(log.NewValue)
	if err != nil {
		return err
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity_type, entity_id, old_value, new_value, reason, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))`,
		log.ActorID, log.Action, log.EntityType, log.EntityID, oldJSON, newJSON, log.Reason, at)
	return err
}

// List returns entries for a single entity, oldest first.
func (l *AuditLogger) List(ctx context.Context, entityType, entityID string, limit int) ([]AuditLog, error) {
	if l == nil || l.pool == nil {
		return nil, errors.New("audit logger not initialised")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.pool.Query(ctx, `SELECT id, actor_id, action, entity_type, entity_id, old_value, new_value, reason, created_at
FROM audit_logs WHERE entity_type = $1 AND entity_id = $2 ORDER BY created_at, id LIMIT $3`, entityType, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditLog
	for rows.Next() {
		var (
			entry    AuditLog
			oldValue []byte
			newValue []byte
		)
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.Action, &entry.EntityType, &entry.EntityID, &oldValue, &newValue, &entry.Reason, &entry.At); err != nil {
			return nil, err
		}
		if len(oldValue) > 0 {
			if err := json.Unmarshal(oldValue, &entry.OldValue); err != nil {
				return nil, err
			}
		}
		if len(newValue) > 0 {
			if err := json.Unmarshal(newValue, &entry.NewValue); err != nil {
				return nil, err
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func marshalSnapshot(v map[string]any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
