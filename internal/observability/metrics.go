package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	rosterOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signup_service",
		Subsystem: "roster",
		Name:      "operations_total",
		Help:      "Signup and unregister calls grouped by outcome.",
	}, []string{"operation", "outcome"})

	seedInserted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "signup_service",
		Subsystem: "seed",
		Name:      "inserted_total",
		Help:      "Number of seed activities inserted into an empty store.",
	})

	eventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signup_service",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Roster events written to Kafka.",
	}, []string{"event_type"})

	eventsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signup_service",
		Subsystem: "events",
		Name:      "failed_total",
		Help:      "Roster events that could not be written to Kafka.",
	}, []string{"event_type"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "signup_service",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency of HTTP requests by route pattern and status.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"method", "route", "status"})
)

func init() {
	prometheus.MustRegister(rosterOperations, seedInserted, eventsPublished, eventsFailed, requestDuration)
}

// RecordRosterOperation counts a signup or unregister call.
func RecordRosterOperation(operation, outcome string) {
	rosterOperations.WithLabelValues(operation, outcome).Inc()
}

// RecordSeedInserted adds n to the seeded-activities counter.
func RecordSeedInserted(n int) {
	if n <= 0 {
		return
	}
	seedInserted.Add(float64(n))
}

// RecordEventPublished counts a roster event delivery attempt.
func RecordEventPublished(eventType string, err error) {
	if err != nil {
		eventsFailed.WithLabelValues(eventType).Inc()
		return
	}
	eventsPublished.WithLabelValues(eventType).Inc()
}

// ObserveRequest records HTTP latency. route should be the mux pattern, not the raw path.
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
