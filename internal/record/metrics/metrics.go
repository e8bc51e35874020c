package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the record lifecycle module.
// Tracks accepted and rejected actions and critical path durations.
type Metrics struct {
	ActionsAccepted     *prometheus.CounterVec
	TransitionsRejected *prometheus.CounterVec
	AppendConflicts     prometheus.Counter
	DuplicatesFlagged   prometheus.Counter
	SubmitDuration      prometheus.Histogram
	DedupeDuration      prometheus.Histogram
	SyncDuration        prometheus.Histogram
}

// New creates a Metrics instance with all record module metrics registered.
func New() *Metrics {
	return &Metrics{
		ActionsAccepted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_actions_accepted_total",
			Help: "Total number of accepted lifecycle actions",
		}, []string{"action_type", "event"}),
		TransitionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_transitions_rejected_total",
			Help: "Total number of actions rejected by the route table",
		}, []string{"action_type"}),
		AppendConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_append_conflicts_total",
			Help: "Total number of appends lost to a concurrent status change",
		}),
		DuplicatesFlagged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_duplicates_flagged_total",
			Help: "Total number of declarations flagged with duplicate candidates",
		}),
		SubmitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "registrar_submit_duration_seconds",
			Help:    "Duration of action submission (route check, append, effects)",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		DedupeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "registrar_dedupe_duration_seconds",
			Help:    "Duration of duplicate candidate search",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		SyncDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "registrar_sync_duration_seconds",
			Help:    "Duration of downstream bundle synchronization",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncrementAccepted records an accepted action.
func (m *Metrics) IncrementAccepted(actionType, event string) {
	if m == nil {
		return
	}
	m.ActionsAccepted.WithLabelValues(actionType, event).Inc()
}

// IncrementRejected records an action refused by the route table.
func (m *Metrics) IncrementRejected(actionType string) {
	if m == nil {
		return
	}
	m.TransitionsRejected.WithLabelValues(actionType).Inc()
}

// IncrementConflict records an append lost to a concurrent writer.
func (m *Metrics) IncrementConflict() {
	if m == nil {
		return
	}
	m.AppendConflicts.Inc()
}

// IncrementDuplicates records a declaration flagged with candidates.
func (m *Metrics) IncrementDuplicates() {
	if m == nil {
		return
	}
	m.DuplicatesFlagged.Inc()
}

// ObserveSubmit records the duration of a Submit operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveSubmit(start time.Time) {
	if m == nil {
		return
	}
	m.SubmitDuration.Observe(time.Since(start).Seconds())
}

// ObserveDedupe records the duration of a candidate search.
func (m *Metrics) ObserveDedupe(start time.Time) {
	if m == nil {
		return
	}
	m.DedupeDuration.Observe(time.Since(start).Seconds())
}

// ObserveSync records the duration of a bundle synchronization.
func (m *Metrics) ObserveSync(start time.Time) {
	if m == nil {
		return
	}
	m.SyncDuration.Observe(time.Since(start).Seconds())
}
