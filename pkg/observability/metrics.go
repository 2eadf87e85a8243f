/*
Package observability bridges engine lifecycle events to Prometheus.

The engine itself stays metrics-free; the serve command registers a Metrics
instance and passes its Hooks to the engine.
*/
package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/katlego-io/ussdflow/pkg/domain"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	sessionsStarted   *prometheus.CounterVec
	sessionsEnded     *prometheus.CounterVec
	stepsProcessed    *prometheus.CounterVec
	invalidSelections *prometheus.CounterVec
	stepDuration      *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ussdflow_sessions_started_total",
				Help: "Total number of sessions created",
			},
			[]string{"flow_id"},
		),
		sessionsEnded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ussdflow_sessions_ended_total",
				Help: "Total number of sessions reaching a terminal status",
			},
			[]string{"flow_id", "status"},
		),
		stepsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ussdflow_steps_total",
				Help: "Total number of processed dialog turns",
			},
			[]string{"flow_id"},
		),
		invalidSelections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ussdflow_invalid_selections_total",
				Help: "Total number of rejected inputs answered with a re-prompt",
			},
			[]string{"flow_id"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ussdflow_step_duration_seconds",
				Help:    "Engine-side latency of one dialog turn",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"flow_id"},
		),
	}
	reg.MustRegister(m.sessionsStarted, m.sessionsEnded, m.stepsProcessed, m.invalidSelections, m.stepDuration)
	return m
}

// Hooks returns lifecycle hooks feeding these collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSessionStart: func(_ context.Context, e *domain.SessionEvent) {
			m.sessionsStarted.WithLabelValues(e.FlowID).Inc()
		},
		OnStep: func(_ context.Context, e *domain.SessionEvent) {
			m.stepDuration.WithLabelValues(e.FlowID).Observe(e.Duration.Seconds())
			if e.Type == domain.EventInvalidSelection {
				m.invalidSelections.WithLabelValues(e.FlowID).Inc()
				return
			}
			m.stepsProcessed.WithLabelValues(e.FlowID).Inc()
		},
		OnSessionEnd: func(_ context.Context, e *domain.SessionEvent) {
			status := "completed"
			switch e.Type {
			case domain.EventSessionExpired:
				status = "expired"
			case domain.EventSessionTerminated:
				status = "terminated"
			}
			m.sessionsEnded.WithLabelValues(e.FlowID, status).Inc()
		},
	}
}
