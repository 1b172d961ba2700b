package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Created            prometheus.Counter
	Transitions        *prometheus.CounterVec
	DomainRejections   *prometheus.CounterVec
	SideEffectFailures *prometheus.CounterVec
	UseCaseDuration    *prometheus.HistogramVec
	DraftSaves         *prometheus.CounterVec
}

// New registers enrollment metrics on reg. Pass prometheus.NewRegistry() in
// tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Created: f.NewCounter(prometheus.CounterOpts{
			Name: "careon_enrollment_created_total",
			Help: "Draft applications created",
		}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "careon_enrollment_transitions_total",
			Help: "Lifecycle transitions by target status",
		}, []string{"status"}),
		DomainRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "careon_enrollment_rejected_operations_total",
			Help: "Use case calls refused with a domain error, by error code",
		}, []string{"code"}),
		SideEffectFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "careon_enrollment_side_effect_failures_total",
			Help: "Failed notification or provisioning attempts",
		}, []string{"effect"}),
		UseCaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "careon_enrollment_use_case_duration_seconds",
			Help:    "Use case latency including persistence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"use_case"}),
		DraftSaves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "careon_enrollment_draft_saves_total",
			Help: "Autosave writes by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncCreated() {
	if m == nil {
		return
	}
	m.Created.Inc()
}

func (m *Metrics) IncTransition(status string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncDomainRejection(code string) {
	if m == nil {
		return
	}
	m.DomainRejections.WithLabelValues(code).Inc()
}

func (m *Metrics) IncSideEffectFailure(effect string) {
	if m == nil {
		return
	}
	m.SideEffectFailures.WithLabelValues(effect).Inc()
}

func (m *Metrics) IncDraftSave(outcome string) {
	if m == nil {
		return
	}
	m.DraftSaves.WithLabelValues(outcome).Inc()
}

// ObserveUseCase records the time elapsed since start.
func (m *Metrics) ObserveUseCase(useCase string, start time.Time) {
	if m == nil {
		return
	}
	m.UseCaseDuration.WithLabelValues(useCase).Observe(time.Since(start).Seconds())
}
