package model

import "time"

// Reservation statuses. ACTIVE -> CANCELLED is the only transition.
const (
	ReservationActive    = "ACTIVE"
	ReservationCancelled = "CANCELLED"
)

// DateLayout is the calendar date format used for Reservation.Date.
const DateLayout = "2006-01-02"

// Reservation books one laboratory for one time slot on one calendar date.
// At most one ACTIVE reservation exists per (LaboratoryID, TimeSlotID, Date).
type Reservation struct {
	ID           string    // reservations.id
	LaboratoryID string    // reservations.laboratory_id
	TimeSlotID   string    // reservations.time_slot_id
	Date         string    // reservations.date (YYYY-MM-DD, no time zone)
	ProfessorID  string    // reservations.professor_id
	Status       string    // reservations.status
	CreatedAt    time.Time // reservations.created_at
	UpdatedAt    time.Time // reservations.updated_at
}

// ProfessorSummary is the public part of the owning user.
type ProfessorSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ReservationDetail is a reservation with the professor, laboratory and
// time slot it references, denormalized for display.
type ReservationDetail struct {
	ID           string           `json:"id"`
	LaboratoryID string           `json:"laboratoryId"`
	TimeSlotID   string           `json:"timeSlotId"`
	Date         string           `json:"date"`
	ProfessorID  string           `json:"professorId"`
	Status       string           `json:"status"`
	CreatedAt    time.Time        `json:"createdAt"`
	Professor    ProfessorSummary `json:"professor"`
	Laboratory   Laboratory       `json:"laboratory"`
	TimeSlot     TimeSlot         `json:"timeSlot"`
}
