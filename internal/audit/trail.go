package audit

import (
	"context"
	"fmt"

	"github.com/consigna/consigna/internal/shared"
)

const maxTrailEntries = 200

// Reader lists stored entries.
type Reader interface {
	List(ctx context.Context, entityType, entityID string, limit int) ([]shared.AuditLog, error)
}

// TrailService serves the history of a single entity.
type TrailService struct {
	reader Reader
}

// NewTrailService membuat service jejak audit.
func NewTrailService(reader Reader) *TrailService {
	return &TrailService{reader: reader}
}

// Trail returns entries for one entity, oldest first.
func (s *TrailService) Trail(ctx context.Context, entityType string, entityID int64) ([]shared.AuditLog, error) {
	if s == nil || s.reader == nil {
		return nil, fmt.Errorf("audit: reader not configured")
	}
	entries, err := s.reader.List(ctx, entityType, fmt.Sprintf("%d", entityID), maxTrailEntries)
	if err != nil {
		return nil, shared.NewStorageError("audit: trail", err)
	}
	if entries == nil {
		entries = []shared.AuditLog{}
	}
	return entries, nil
}
