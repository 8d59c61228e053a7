package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AssignmentMetrics counts offers, decisions and timeouts across orders and
// transport jobs.
type AssignmentMetrics struct {
	offers       *prometheus.CounterVec
	decisions    *prometheus.CounterVec
	timeouts     *prometheus.CounterVec
	insufficient *prometheus.CounterVec
	conflicts    *prometheus.CounterVec
}

// NewAssignmentMetrics registers the assignment metrics on reg. A nil
// registerer yields a no-op recorder.
func NewAssignmentMetrics(reg prometheus.Registerer) *AssignmentMetrics {
	if reg == nil {
		return &AssignmentMetrics{}
	}
	offers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_offers_total",
		Help: "Offers sent to candidates.",
	}, []string{"kind", "mode"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_decisions_total",
		Help: "Decisions recorded on offers.",
	}, []string{"kind", "decision"})
	timeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_timeouts_fired_total",
		Help: "Offer deadlines that expired before a decision.",
	}, []string{"kind"})
	insufficient := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_insufficient_candidates_total",
		Help: "Auto-assign attempts that found too few eligible candidates.",
	}, []string{"kind"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_version_conflicts_total",
		Help: "Writes rejected because the record changed underneath them.",
	}, []string{"kind"})
	reg.MustRegister(offers, decisions, timeouts, insufficient, conflicts)
	return &AssignmentMetrics{
		offers:       offers,
		decisions:    decisions,
		timeouts:     timeouts,
		insufficient: insufficient,
		conflicts:    conflicts,
	}
}

// AddOffers records n offers made in one assignment round.
func (m *AssignmentMetrics) AddOffers(kind, mode string, n int) {
	if m == nil || m.offers == nil || n <= 0 {
		return
	}
	m.offers.WithLabelValues(normalizeLabel(kind), normalizeLabel(mode)).Add(float64(n))
}

func (m *AssignmentMetrics) IncDecision(kind, decision string) {
	if m == nil || m.decisions == nil {
		return
	}
	m.decisions.WithLabelValues(normalizeLabel(kind), normalizeLabel(decision)).Inc()
}

func (m *AssignmentMetrics) IncTimeout(kind string) {
	if m == nil || m.timeouts == nil {
		return
	}
	m.timeouts.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *AssignmentMetrics) IncInsufficient(kind string) {
	if m == nil || m.insufficient == nil {
		return
	}
	m.insufficient.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *AssignmentMetrics) IncConflict(kind string) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.WithLabelValues(normalizeLabel(kind)).Inc()
}
