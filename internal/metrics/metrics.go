package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "frontdesk"

var (
	once sync.Once

	tokensIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Count of queue tokens issued, by whether the daily counter was reset.",
		},
		[]string{"reset"},
	)

	visitTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visit_transitions_total",
			Help:      "Count of visit actions by action and result.",
		},
		[]string{"action", "result"},
	)

	storeConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_conflicts_total",
			Help:      "Count of lost compare-and-swap races by record kind.",
		},
		[]string{"kind"},
	)

	attendanceEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attendance_events_total",
			Help:      "Count of check-in/check-out attempts by event and result.",
		},
		[]string{"event", "result"},
	)

	notificationsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_published_total",
			Help:      "Count of invalidation events published by kind.",
		},
		[]string{"kind"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notification_subscribers",
			Help:      "Current number of fan-out subscribers.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			tokensIssued,
			visitTransitions,
			storeConflicts,
			attendanceEvents,
			notificationsPublished,
			httpRequests,
			subscribers,
		)
	})
}

func IncTokenIssued(reset bool) {
	label := "false"
	if reset {
		label = "true"
	}
	tokensIssued.WithLabelValues(label).Inc()
}

func IncVisitTransition(action, result string) {
	visitTransitions.WithLabelValues(action, result).Inc()
}

func IncStoreConflict(kind string) {
	storeConflicts.WithLabelValues(kind).Inc()
}

func IncAttendanceEvent(event, result string) {
	attendanceEvents.WithLabelValues(event, result).Inc()
}

func IncNotificationPublished(kind string) {
	notificationsPublished.WithLabelValues(kind).Inc()
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func AddSubscribers(delta int) {
	subscribers.Add(float64(delta))
}

// Result maps an operation error to a low-cardinality label.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
