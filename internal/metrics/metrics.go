// Package metrics exposes the gateway's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mailboard",
		Name:      "ws_connections",
		Help:      "Currently connected event stream clients.",
	})

	EventsBroadcast = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mailboard",
		Name:      "events_broadcast_total",
		Help:      "Events fanned out to clients, by event type.",
	}, []string{"type"})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mailboard",
		Name:      "events_dropped_total",
		Help:      "Events dropped because a client's send buffer was full.",
	})

	AuthFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mailboard",
		Name:      "auth_failures_total",
		Help:      "Rejected authentication attempts.",
	})
)

// Handler serves the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
