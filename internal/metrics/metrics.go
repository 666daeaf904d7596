package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "carwash"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by action and outcome.",
		},
		[]string{"action", "status"},
	)

	bookingsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Bookings accepted, by the path that persisted them (store or fallback).",
		},
		[]string{"path"},
	)

	notificationsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_received_total",
			Help:      "Booking-created notifications merged, by channel.",
		},
		[]string{"channel"},
	)

	notificationsDuplicate = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_duplicate_total",
			Help:      "Booking-created notifications dropped because the id was already known.",
		},
		[]string{"channel"},
	)

	storeFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_fallbacks_total",
			Help:      "Operations served from the local cache because the store was unavailable.",
		},
		[]string{"operation"},
	)

	sheetsTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheets_tasks_total",
			Help:      "Google Sheets mirror tasks by type and outcome (completed, retry, failed).",
		},
		[]string{"task", "outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingsCreated, notificationsReceived, notificationsDuplicate, storeFallbacks, sheetsTasks)
	})
}

// IncHTTP counts one API request.
func IncHTTP(action, status string) {
	httpRequests.WithLabelValues(action, status).Inc()
}

func IncBookingCreated(path string) {
	bookingsCreated.WithLabelValues(path).Inc()
}

func IncNotification(channel string) {
	notificationsReceived.WithLabelValues(channel).Inc()
}

func IncDuplicate(channel string) {
	notificationsDuplicate.WithLabelValues(channel).Inc()
}

// IncFallback counts an operation masked by the local cache.
func IncFallback(operation string) {
	storeFallbacks.WithLabelValues(operation).Inc()
}

// IncSheetsTask counts one settled Sheets mirror task.
func IncSheetsTask(task, outcome string) {
	sheetsTasks.WithLabelValues(task, outcome).Inc()
}
