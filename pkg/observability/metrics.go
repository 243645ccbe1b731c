package observability

import (
	"context"

	"github.com/ngabopay/ussdpilot/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	Sessions        *prometheus.CounterVec
	Screens         *prometheus.CounterVec
	Actions         *prometheus.CounterVec
	SessionDuration *prometheus.HistogramVec
	Active          prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ussdpilot_sessions_total",
				Help: "Resolved USSD sessions, by outcome.",
			},
			[]string{"outcome"},
		),
		Screens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ussdpilot_screens_total",
				Help: "Processed dialer screens, by classification.",
			},
			[]string{"classification"},
		),
		Actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ussdpilot_actions_total",
				Help: "Executor actions, by kind and result.",
			},
			[]string{"kind", "result"},
		),
		SessionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ussdpilot_session_duration_seconds",
				Help:    "Time from dial to resolution.",
				Buckets: []float64{1, 2.5, 5, 10, 20, 30, 45, 60, 90},
			},
			[]string{"outcome"},
		),
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ussdpilot_session_active",
			Help: "1 while a session holds the engine.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Sessions, m.Screens, m.Actions, m.SessionDuration, m.Active)
	}
	return m
}

// Hooks returns lifecycle hooks that update m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSessionStart: func(_ context.Context, _ *domain.SessionEvent) {
			m.Active.Set(1)
		},
		OnScreen: func(_ context.Context, e *domain.ScreenEvent) {
			m.Screens.WithLabelValues(string(e.Classification)).Inc()
		},
		OnAction: func(_ context.Context, e *domain.ActionEvent) {
			result := "ok"
			switch {
			case e.Err != nil:
				result = "error"
			case e.Label == "" && e.Kind != domain.ActionNone:
				result = "no_control"
			}
			m.Actions.WithLabelValues(string(e.Kind), result).Inc()
		},
		OnResolve: func(_ context.Context, e *domain.ResolveEvent) {
			outcome := string(e.Result.Outcome)
			m.Active.Set(0)
			m.Sessions.WithLabelValues(outcome).Inc()
			m.SessionDuration.WithLabelValues(outcome).Observe(e.Result.Duration().Seconds())
		},
	}
}
