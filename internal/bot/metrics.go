package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the dashboard bot's Prometheus collectors.
type Metrics struct {
	UpdatesProcessed     *prometheus.CounterVec
	CommandsProcessed    *prometheus.CounterVec
	ErrorsTotal          prometheus.Counter
	UpdateProcessingTime prometheus.Histogram
	NotificationsSent    prometheus.Counter
	ExportsTotal         *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg; nil means the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		UpdatesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carwash_bot_updates_total",
			Help: "Telegram updates handled, by kind",
		}, []string{"kind"}),

		CommandsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carwash_bot_commands_total",
			Help: "Dashboard commands handled",
		}, []string{"command"}),

		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "carwash_bot_errors_total",
			Help: "Panics recovered in update handlers",
		}),

		UpdateProcessingTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "carwash_bot_update_processing_time_seconds",
			Help:    "Time spent processing updates",
			Buckets: prometheus.DefBuckets,
		}),

		NotificationsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "carwash_bot_notifications_sent_total",
			Help: "New-booking notifications pushed to admin chats",
		}),

		ExportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carwash_bot_exports_total",
			Help: "Booking exports sent, by format",
		}, []string{"format"}),
	}
}
