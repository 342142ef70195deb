// Package metrics declares the process-wide Prometheus collectors. They are
// registered on the default registry and served by promhttp at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Booking outcomes.
const (
	OutcomeCreated   = "created"
	OutcomeConflict  = "conflict"
	OutcomeRejected  = "rejected"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

var (
	BookingAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lab_reservation_booking_attempts_total",
		Help: "Reservation create and cancel attempts by outcome.",
	}, []string{"outcome"})

	SessionsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lab_reservation_sessions_issued_total",
		Help: "Sessions created at login.",
	})

	SessionsRevoked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lab_reservation_sessions_revoked_total",
		Help: "Sessions closed by logout, revocation or logout-all.",
	})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lab_reservation_rate_limited_total",
		Help: "Requests rejected by the token bucket, by route.",
	}, []string{"route"})
)
