package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions       prometheus.Gauge
	SessionEvents        *prometheus.CounterVec
	WSMessages           *prometheus.CounterVec
	WakeDetections       prometheus.Counter
	VoiceModeTransitions *prometheus.CounterVec
	HandoffTimeouts      prometheus.Counter
	LanguageSwitches     *prometheus.CounterVec
	DialogueRequests     *prometheus.CounterVec
	DialogueLatency      prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of connected client sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		WakeDetections: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wake_detections_total",
			Help:      "Trigger phrase detections.",
		}),
		VoiceModeTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_mode_transitions_total",
			Help:      "Voice mode transitions by target state.",
		}, []string{"state"}),
		HandoffTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoff_timeouts_total",
			Help:      "Cross-thread voice-mode handoffs that exceeded their bound.",
		}),
		LanguageSwitches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "language_switches_total",
			Help:      "Accepted language switches by target language.",
		}, []string{"language"}),
		DialogueRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialogue_requests_total",
			Help:      "Dialogue service requests by outcome.",
		}, []string{"outcome"}),
		DialogueLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dialogue_latency_ms",
			Help:      "Dialogue service round-trip latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
