package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "courtbook"

var (
	once sync.Once

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Booking attempts by result.",
		},
		[]string{"result"},
	)

	regenerations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_regenerations_total",
			Help:      "Count of rolling-window regenerations.",
		},
	)

	slots = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_slots",
			Help:      "Slots in the current window by state.",
		},
		[]string{"state"},
	)

	corruptDocuments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_document_corrupt_total",
			Help:      "Times an unreadable ledger document was replaced by an empty one.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by handler.",
		},
		[]string{"handler"},
	)

	eventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped because the dispatch queue was full.",
		},
		[]string{"type"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookings, regenerations, slots, corruptDocuments, httpRequests, eventsDropped)
	})
}

// Booking results.
const (
	ResultBooked        = "booked"
	ResultNotFound      = "not_found"
	ResultAlreadyBooked = "already_booked"
	ResultError         = "error"
)

func IncBooking(result string) {
	bookings.WithLabelValues(result).Inc()
}

func IncRegeneration() {
	regenerations.Inc()
}

func SetSlotCounts(available, booked int) {
	slots.WithLabelValues("available").Set(float64(available))
	slots.WithLabelValues("booked").Set(float64(booked))
}

func IncCorruptDocument() {
	corruptDocuments.Inc()
}

func IncHTTP(handler string) {
	httpRequests.WithLabelValues(handler).Inc()
}

func IncEventDropped(eventType string) {
	eventsDropped.WithLabelValues(eventType).Inc()
}
