package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ezbiz"

var (
	once sync.Once

	slotQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_queries_total",
			Help:      "Count of slot lookups by outcome (available, none).",
		},
		[]string{"outcome"},
	)

	availabilityChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_checks_total",
			Help:      "Count of availability checks by result.",
		},
		[]string{"result"},
	)

	bookingsCommitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_committed_total",
			Help:      "Count of persisted bookings by kind (single, series).",
		},
		[]string{"kind"},
	)

	bookingsCanceled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_canceled_total",
			Help:      "Count of canceled bookings.",
		},
	)

	occurrencesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recurrence_skipped_total",
			Help:      "Count of recurring dates skipped by reason.",
		},
		[]string{"reason"},
	)

	storageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Count of storage failures by operation.",
		},
		[]string{"op"},
	)

	workflowTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_transitions_total",
			Help:      "Count of booking workflow transitions.",
		},
		[]string{"from", "to"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of API requests by route.",
		},
		[]string{"route"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			slotQueries,
			availabilityChecks,
			bookingsCommitted,
			bookingsCanceled,
			occurrencesSkipped,
			storageErrors,
			workflowTransitions,
			httpRequests,
		)
	})
}

func IncSlotQuery(found bool) {
	outcome := "none"
	if found {
		outcome = "available"
	}
	slotQueries.WithLabelValues(outcome).Inc()
}

func IncAvailabilityCheck(result string) {
	availabilityChecks.WithLabelValues(result).Inc()
}

func IncBookingCommitted(kind string) {
	bookingsCommitted.WithLabelValues(kind).Inc()
}

func IncBookingCanceled() {
	bookingsCanceled.Inc()
}

func IncOccurrenceSkipped(reason string) {
	occurrencesSkipped.WithLabelValues(reason).Inc()
}

func IncStorageError(op string) {
	storageErrors.WithLabelValues(op).Inc()
}

func IncWorkflowTransition(from, to string) {
	workflowTransitions.WithLabelValues(from, to).Inc()
}

func IncHTTP(route string) {
	httpRequests.WithLabelValues(route).Inc()
}
