package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the server's metrics on a private prometheus registry so
// tests can create as many instances as they like.
type Registry struct {
	registry *prometheus.Registry

	SessionsActive         prometheus.Gauge
	SessionsTotal          prometheus.Counter
	HandshakeFailuresTotal prometheus.Counter
	MessagesRelayedTotal   prometheus.Counter
	BytesRelayedTotal      prometheus.Counter
	FramesRejectedTotal    prometheus.Counter
}

func New() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}

	r.SessionsActive = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "lockchat_sessions_active",
			Help: "Number of currently authenticated sessions",
		},
	)

	r.SessionsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lockchat_sessions_total",
			Help: "Total sessions admitted since start",
		},
	)

	r.HandshakeFailuresTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lockchat_handshake_failures_total",
			Help: "Connection attempts refused during the handshake",
		},
	)

	r.MessagesRelayedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lockchat_messages_relayed_total",
			Help: "Chat messages accepted and fanned out",
		},
	)

	r.BytesRelayedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lockchat_bytes_relayed_total",
			Help: "Sealed payload bytes fanned out to sessions",
		},
	)

	r.FramesRejectedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lockchat_frames_rejected_total",
			Help: "Inbound frames dropped for protocol or authentication errors",
		},
	)

	return r
}

// Handler exposes the registry in the prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
