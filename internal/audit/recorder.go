// Package audit records lifecycle changes on a best-effort basis: a failed write is logged
// and flips the recorder into degraded mode but never fails the triggering operation.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/consigna/consigna/internal/shared"
)

const defaultWriteTimeout = 3 * time.Second

// Sink persists audit entries.
type Sink interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Recorder wraps a Sink with failure accounting.
type Recorder struct {
	sink     Sink
	logger   *slog.Logger
	failures prometheus.Counter
	writes   prometheus.Counter
	degraded atomic.Bool
	timeout  time.Duration
	clock    func() time.Time
}

// NewRecorder builds a recorder. A nil registerer uses the default Prometheus registerer.
func NewRecorder(sink Sink, logger *slog.Logger, registerer prometheus.Registerer) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	failures := registerCounter(registerer, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consigna_audit_write_failures_total",
		Help: "Audit entries that could not be persisted.",
	}))
	writes := registerCounter(registerer, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consigna_audit_writes_total",
		Help: "Audit entries persisted.",
	}))
	return &Recorder{
		sink:     sink,
		logger:   logger,
		failures: failures,
		writes:   writes,
		timeout:  defaultWriteTimeout,
		clock:    time.Now,
	}
}

// Record appends an entry. It detaches from the caller's cancellation so an entry for a
// committed change is still attempted after the request finishes.
func (r *Recorder) Record(ctx context.Context, entry shared.AuditLog) {
	if r == nil || r.sink == nil {
		return
	}
	if entry.At.IsZero() {
		entry.At = r.clock().UTC()
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := r.sink.Record(writeCtx, entry); err != nil {
		r.failures.Inc()
		if !r.degraded.Swap(true) {
			r.logger.Error("audit degraded", slog.Any("error", err))
		}
		r.logger.Warn("audit write failed",
			slog.String("entity_type", entry.EntityType),
			slog.String("entity_id", entry.EntityID),
			slog.String("action", entry.Action),
			slog.Any("error", err),
		)
		return
	}
	r.writes.Inc()
	if r.degraded.Swap(false) {
		r.logger.Info("audit recovered")
	}
}

// Degraded reports whether the most recent write failed.
func (r *Recorder) Degraded() bool {
	return r != nil && r.degraded.Load()
}

func registerCounter(registerer prometheus.Registerer, c prometheus.Counter) prometheus.Counter {
	if err := registerer.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(prometheus.Counter); ok {
				return existing
			}
		}
	}
	return c
}
