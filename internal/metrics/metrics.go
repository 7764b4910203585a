package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gigbook"

var (
	once sync.Once

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transitions_total",
			Help:      "Count of booking state changes by resulting status.",
		},
		[]string{"status"},
	)

	guardRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_rejections_total",
			Help:      "Count of operations refused by a state guard.",
		},
		[]string{"operation", "kind"},
	)

	adminDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admin_decisions_total",
			Help:      "Count of admin gate decisions by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of API requests by handler and status code.",
		},
		[]string{"handler", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"handler"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Count of notification dispatches by type and result.",
		},
		[]string{"type", "result"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Count of gig listing cache lookups by result.",
		},
		[]string{"result"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingTransitions,
			guardRejections,
			adminDecisions,
			httpRequests,
			httpDuration,
			notifications,
			cacheLookups,
		)
	})
}

func IncBookingTransition(status string) {
	bookingTransitions.WithLabelValues(status).Inc()
}

func IncGuardRejection(operation, kind string) {
	guardRejections.WithLabelValues(operation, kind).Inc()
}

func IncAdminDecision(method string, admin bool) {
	outcome := "denied"
	if admin {
		outcome = "granted"
	}
	adminDecisions.WithLabelValues(method, outcome).Inc()
}

func ObserveHTTP(handler string, code int, took time.Duration) {
	httpRequests.WithLabelValues(handler, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(handler).Observe(took.Seconds())
}

func IncNotification(kind, result string) {
	notifications.WithLabelValues(kind, result).Inc()
}

func IncCache(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}
