package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roombook",
			Name:      "bookings_created_total",
			Help:      "Count of stored bookings by creation kind.",
		},
		[]string{"kind"},
	)

	bookingsDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "roombook",
			Name:      "bookings_deleted_total",
			Help:      "Count of deleted bookings.",
		},
	)

	bookingConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roombook",
			Name:      "booking_conflicts_total",
			Help:      "Count of rejected booking requests by where the overlap was found.",
		},
		[]string{"source"},
	)

	bookingsPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "roombook",
			Name:      "bookings_purged_total",
			Help:      "Count of past bookings removed by retention.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roombook",
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	eventsForwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roombook",
			Name:      "events_forwarded_total",
			Help:      "Count of events forwarded to the broker by result.",
		},
		[]string{"result"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingsCreated, bookingsDeleted, bookingConflicts, bookingsPurged, httpRequests, eventsForwarded)
	})
}

func IncBookingsCreated(kind string, n int) {
	bookingsCreated.WithLabelValues(kind).Add(float64(n))
}

func IncBookingsDeleted(n int) {
	bookingsDeleted.Add(float64(n))
}

func IncConflict(source string) {
	bookingConflicts.WithLabelValues(source).Inc()
}

func IncPurged(n int64) {
	bookingsPurged.Add(float64(n))
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncForwarded(result string) {
	eventsForwarded.WithLabelValues(result).Inc()
}
