package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics carries the pipeline counters. Every counter is monotonic;
// the reporting layer reads none of these, they exist for operators.
type Metrics struct {
	EventsTotal   *prometheus.CounterVec
	Rejected      prometheus.Counter
	Duplicates    prometheus.Counter
	Unattributed  prometheus.Counter
	StaleEvents   prometheus.Counter
	Amendments    prometheus.Counter
	AppliedDeltas prometheus.Counter
	DeadLetters   prometheus.Counter
	QueueRejects  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attribution_events_total",
			Help: "Normalized events accepted into the pipeline, by method.",
		}, []string{"method"}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attribution_events_rejected_total",
			Help: "Events rejected at normalization (validation errors).",
		}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attribution_events_duplicate_total",
			Help: "Redelivered event_ids short-circuited as no-ops.",
		}),
		Unattributed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attribution_conversions_unattributed_total",
			Help: "Conversions finalized without any matching campaign.",
		}),
		StaleEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attribution_events_stale_total",
			Help: "Events older than the recompute horizon, accepted but flagged.",
		}),
		Amendments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attribution_record_amendments_total",
			Help: "Late touchpoint appends to frozen conversion records.",
		}),
		AppliedDeltas: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attribution_aggregate_deltas_applied_total",
			Help: "Deltas applied to campaign aggregates (idempotent skips excluded).",
		}),
		DeadLetters: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attribution_dead_letters_total",
			Help: "Deltas durably parked after exhausting store retries.",
		}),
		QueueRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attribution_intake_rejections_total",
			Help: "Enqueue attempts refused because the intake queue was full.",
		}),
	}
	reg.MustRegister(
		m.EventsTotal, m.Rejected, m.Duplicates, m.Unattributed,
		m.StaleEvents, m.Amendments, m.AppliedDeltas, m.DeadLetters,
		m.QueueRejects,
	)
	return m
}

// NewNop registers against a throwaway registry. Used in tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
