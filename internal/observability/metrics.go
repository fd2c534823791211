package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveBridges    prometheus.Gauge
	BridgeEvents     *prometheus.CounterVec
	RelayFrames      *prometheus.CounterVec
	Reconnects       prometheus.Counter
	Interruptions    prometheus.Counter
	RegistrySessions prometheus.Gauge
	ProviderErrors   *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveBridges: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_bridges",
			Help:      "Number of telephony call bridges currently running.",
		}),
		BridgeEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_events_total",
			Help:      "Bridge lifecycle events by type.",
		}, []string{"event"}),
		RelayFrames: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_frames_total",
			Help:      "Relayed audio/control frames by direction and type.",
		}, []string{"direction", "type"}),
		Reconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_reconnects_total",
			Help:      "AI-side reconnect attempts across all bridges.",
		}),
		Interruptions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "caller_interruptions_total",
			Help:      "Caller barge-ins that truncated in-flight assistant speech.",
		}),
		RegistrySessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_sessions",
			Help:      "Registered app-to-AI realtime sessions.",
		}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and code.",
		}, []string{"provider", "code"}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
