package core

import (
	"github.com/prometheus/client_golang/prometheus"
)

type controllerMetrics struct {
	registry   *prometheus.Registry
	routers    prometheus.Gauge
	recomputes prometheus.Counter
	pushes     *prometheus.CounterVec
	rejected   prometheus.Counter
}

func newControllerMetrics() *controllerMetrics {
	m := &controllerMetrics{
		registry: prometheus.NewRegistry(),
		routers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weft",
			Subsystem: "controller",
			Name:      "registered_routers",
			Help:      "Number of routers with a live control link",
		}),
		recomputes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weft",
			Subsystem: "controller",
			Name:      "route_recomputations_total",
			Help:      "Number of times every route table was recomputed",
		}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weft",
			Subsystem: "controller",
			Name:      "route_pushes_total",
			Help:      "Route tables pushed to routers by result",
		}, []string{"result"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weft",
			Subsystem: "controller",
			Name:      "rejected_connections_total",
			Help:      "Connections dropped before registration",
		}),
	}
	m.registry.MustRegister(m.routers, m.recomputes, m.pushes, m.rejected)
	return m
}
