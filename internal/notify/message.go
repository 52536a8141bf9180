// Package notify delivers lifecycle events to suppliers through a transactional outbox.
package notify

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks an outbox row.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Message is one notification waiting in, or relayed from, the outbox.
type Message struct {
	ID         uuid.UUID      `json:"id"`
	UserID     int64          `json:"user_id"`
	Kind       string         `json:"kind"`
	Payload    map[string]any `json:"payload"`
	Body       string         `json:"body"`
	Status     Status         `json:"-"`
	RetryCount int            `json:"-"`
	LastError  *string        `json:"-"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewMessage builds a pending message with a rendered body.
func NewMessage(userID int64, kind string, payload map[string]any, now time.Time) Message {
	return Message{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      kind,
		Payload:   payload,
		Body:      Render(kind, payload),
		Status:    StatusPending,
		CreatedAt: now.UTC(),
	}
}
