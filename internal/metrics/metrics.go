// Package metrics declares the Prometheus instruments exported by the
// service. All instruments hang off an injected registry so tests can
// use isolated ones.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Set struct {
	HTTPRequests     *prometheus.CounterVec
	Transitions      *prometheus.CounterVec
	OutboxDispatched *prometheus.CounterVec
	OutboxPending    prometheus.Gauge
}

func New(reg prometheus.Registerer) *Set {
	factory := promauto.With(reg)

	return &Set{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_order_transitions_total",
			Help: "Order lifecycle transitions by operation and outcome.",
		}, []string{"op", "outcome"}),
		OutboxDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_outbox_dispatched_total",
			Help: "Outbox events dispatched by kind and outcome.",
		}, []string{"kind", "outcome"}),
		OutboxPending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "marketplace_outbox_pending_events",
			Help: "Outbox events waiting for dispatch.",
		}),
	}
}

// ObserveTransition records one lifecycle operation attempt.
func (s *Set) ObserveTransition(op, outcome string) {
	s.Transitions.WithLabelValues(op, outcome).Inc()
}

// ObserveDispatch records one outbox delivery attempt.
func (s *Set) ObserveDispatch(kind, outcome string) {
	s.OutboxDispatched.WithLabelValues(kind, outcome).Inc()
}
