// Package queue carries reservation events over RabbitMQ: the payload, a
// publisher used by the API after commits, and the audit consumer.
package queue

// ReservationsQueue is the durable queue every reservation event is routed to.
const ReservationsQueue = "reservation.events"

// Event types.
const (
	EventReservationCreated   = "reservation.created"
	EventReservationCancelled = "reservation.cancelled"
)

// ReservationEvent is published after a reservation is created or cancelled.
// It carries enough detail for consumers to log or notify without querying
// the primary database.
type ReservationEvent struct {
	Type           string `json:"type"`
	ReservationID  string `json:"reservationId"`
	LaboratoryID   string `json:"laboratoryId"`
	LaboratoryName string `json:"laboratoryName"`
	TimeSlotID     string `json:"timeSlotId"`
	SlotStart      string `json:"slotStart"`
	SlotEnd        string `json:"slotEnd"`
	Date           string `json:"date"`
	ProfessorID    string `json:"professorId"`
	ActorID        string `json:"actorId"`
	OccurredAt     string `json:"occurredAt"`
}
