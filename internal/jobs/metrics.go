package jobmetrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs          *prometheus.CounterVec
	failures      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	cancellations *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddCutoffCancellations counts drafts cancelled by the sweep for a store.
func (m *Metrics) AddCutoffCancellations(storeID int64, count int) {
	if m == nil || count <= 0 {
		return
	}
	store := "0"
	if storeID > 0 {
		store = formatInt(storeID)
	}
	m.cancellations.WithLabelValues(store).Add(float64(count))
}

// AddNotifications counts relayed outbox rows by outcome (sent, retried, dead).
func (m *Metrics) AddNotifications(outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.notifications.WithLabelValues(outcome).Add(float64(count))
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consigna_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consigna_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "consigna_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	cancellations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consigna_cutoff_cancellations_total",
		Help: "Draft transactions cancelled by the cutoff sweep, per store.",
	}, []string{"store"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consigna_notifications_relayed_total",
		Help: "Outbox notifications handled by the relay, by outcome.",
	}, []string{"outcome"})
	registerer.MustRegister(runs, failures, duration, cancellations, notifications)
	return &Metrics{runs: runs, failures: failures, duration: duration, cancellations: cancellations, notifications: notifications}
}
