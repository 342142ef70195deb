package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/labreserve/lab-reservation/internal/metrics"
	"github.com/labreserve/lab-reservation/internal/model"
	"github.com/labreserve/lab-reservation/internal/queue"
	"github.com/labreserve/lab-reservation/internal/repository"
)

// EventPublisher delivers reservation events after a commit.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// CreateReservationInput is the body of a booking request. ProfessorID
// defaults to the caller.
type CreateReservationInput struct {
	LaboratoryID string
	TimeSlotID   string
	Date         string
	ProfessorID  string
}

// ReservationQuery narrows ListReservations. Empty fields match all.
type ReservationQuery struct {
	LaboratoryID string
	TimeSlotID   string
	Date         string
	Status       string
}

// BookingEngine validates, authorizes and applies reservation changes.
// Double booking is prevented by the ledger's unique index on ACTIVE
// triples; the pre-check here only produces a faster, friendlier Conflict.
type BookingEngine struct {
	reservations *repository.ReservationRepo
	labs         *repository.LaboratoryRepo
	slots        *repository.TimeSlotRepo
	users        *repository.UserRepo
	tx           *repository.TxRunner
	events       EventPublisher
	log          *zap.Logger
	now          func() time.Time

	// beforeInsert, when set, runs between the availability check and the
	// insert. Tests use it to land a competing booking in that window.
	beforeInsert func(ctx context.Context)
}

// NewBookingEngine wires a BookingEngine. A nil events publisher disables
// event delivery.
func NewBookingEngine(db *sql.DB, events EventPublisher, log *zap.Logger) *BookingEngine {
	if events == nil {
		events = queue.NopPublisher{}
	}
	return &BookingEngine{
		reservations: repository.NewReservationRepo(db),
		labs:         repository.NewLaboratoryRepo(db),
		slots:        repository.NewTimeSlotRepo(db),
		users:        repository.NewUserRepo(db),
		tx:           repository.NewTxRunner(db),
		events:       events,
		log:          log,
		now:          time.Now,
	}
}

const msgTripleTaken = "time slot already reserved for this laboratory and date"

// CreateReservation books (laboratory, slot, date) for the target professor.
func (e *BookingEngine) CreateReservation(ctx context.Context, actor SessionContext, in CreateReservationInput) (model.ReservationDetail, error) {
	in.LaboratoryID = strings.TrimSpace(in.LaboratoryID)
	in.TimeSlotID = strings.TrimSpace(in.TimeSlotID)
	in.Date = strings.TrimSpace(in.Date)
	if in.LaboratoryID == "" || in.TimeSlotID == "" || in.Date == "" {
		e.count(metrics.OutcomeRejected)
		return model.ReservationDetail{}, invalid("laboratoryId, timeSlotId and date are required")
	}
	target := strings.TrimSpace(in.ProfessorID)
	if target == "" {
		target = actor.UserID
	}
	if target != actor.UserID && !actor.IsAdmin() {
		e.count(metrics.OutcomeRejected)
		return model.ReservationDetail{}, forbidden("cannot book for another professor")
	}
	if !validDate(in.Date) {
		e.count(metrics.OutcomeRejected)
		return model.ReservationDetail{}, invalid("date must be YYYY-MM-DD")
	}

	prof, err := e.users.GetByID(ctx, target)
	if err != nil {
		return model.ReservationDetail{}, e.fail(translate(err, "professor not found"))
	}
	if prof.ID != actor.UserID && prof.Role != model.RoleProfessor {
		// admins book on a professor's behalf, never for another admin
		return model.ReservationDetail{}, e.fail(notFound("professor not found"))
	}
	lab, err := e.labs.GetByID(ctx, in.LaboratoryID)
	if err != nil {
		return model.ReservationDetail{}, e.fail(translate(err, "laboratory not found"))
	}
	slot, err := e.slots.GetByID(ctx, in.TimeSlotID)
	if err != nil {
		return model.ReservationDetail{}, e.fail(translate(err, "time slot not found"))
	}

	switch _, err := e.reservations.FindActiveByTriple(ctx, lab.ID, slot.ID, in.Date); {
	case err == nil:
		e.logConflict(actor, lab.ID, slot.ID, in.Date)
		return model.ReservationDetail{}, conflict(msgTripleTaken)
	case !errors.Is(err, repository.ErrNotFound):
		return model.ReservationDetail{}, e.fail(unavailable(err))
	}

	if e.beforeInsert != nil {
		e.beforeInsert(ctx)
	}
	res := model.Reservation{
		ID:           uuid.NewString(),
		LaboratoryID: lab.ID,
		TimeSlotID:   slot.ID,
		Date:         in.Date,
		ProfessorID:  prof.ID,
		Status:       model.ReservationActive,
		CreatedAt:    e.now().UTC(),
	}
	if err := e.reservations.Insert(ctx, &res); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// lost the race against a concurrent insert for the same triple
			e.logConflict(actor, lab.ID, slot.ID, in.Date)
			return model.ReservationDetail{}, conflict(msgTripleTaken)
		}
		return model.ReservationDetail{}, e.fail(unavailable(err))
	}
	e.count(metrics.OutcomeCreated)

	d := model.ReservationDetail{
		ID:           res.ID,
		LaboratoryID: res.LaboratoryID,
		TimeSlotID:   res.TimeSlotID,
		Date:         res.Date,
		ProfessorID:  res.ProfessorID,
		Status:       res.Status,
		CreatedAt:    res.CreatedAt,
		Professor:    model.ProfessorSummary{ID: prof.ID, Name: prof.Name, Email: prof.Email},
		Laboratory:   lab,
		TimeSlot:     slot,
	}
	e.publish(queue.EventReservationCreated, d, actor.UserID)
	return d, nil
}

// UpdateStatus applies a status change. Only ACTIVE -> CANCELLED exists, by
// the owner or an ADMIN.
func (e *BookingEngine) UpdateStatus(ctx context.Context, actor SessionContext, id, status string) (model.ReservationDetail, error) {
	if status != model.ReservationCancelled {
		return model.ReservationDetail{}, invalid("status can only be set to CANCELLED")
	}
	res, err := e.reservations.GetByID(ctx, id)
	if err != nil {
		return model.ReservationDetail{}, translate(err, "reservation not found")
	}
	if res.ProfessorID != actor.UserID && !actor.IsAdmin() {
		return model.ReservationDetail{}, forbidden("not your reservation")
	}
	if res.Status != model.ReservationActive {
		return model.ReservationDetail{}, invalid("reservation is already cancelled")
	}
	if err := e.reservations.UpdateStatus(ctx, id, model.ReservationActive, model.ReservationCancelled); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// cancelled concurrently between the read and the update
			return model.ReservationDetail{}, invalid("reservation is already cancelled")
		}
		return model.ReservationDetail{}, e.fail(unavailable(err))
	}
	e.count(metrics.OutcomeCancelled)

	d, err := e.reservations.GetDetail(ctx, id)
	if err != nil {
		return model.ReservationDetail{}, translate(err, "reservation not found")
	}
	e.publish(queue.EventReservationCancelled, d, actor.UserID)
	return d, nil
}

// GetReservation returns one reservation to its owner or an ADMIN.
func (e *BookingEngine) GetReservation(ctx context.Context, actor SessionContext, id string) (model.ReservationDetail, error) {
	d, err := e.reservations.GetDetail(ctx, id)
	if err != nil {
		return model.ReservationDetail{}, translate(err, "reservation not found")
	}
	if d.ProfessorID != actor.UserID && !actor.IsAdmin() {
		return model.ReservationDetail{}, forbidden("not your reservation")
	}
	return d, nil
}

// ListReservations returns every reservation for an ADMIN and only the
// caller's own for a PROFESSOR, ordered by date then slot start.
func (e *BookingEngine) ListReservations(ctx context.Context, actor SessionContext, q ReservationQuery) ([]model.ReservationDetail, error) {
	if q.Date != "" && !validDate(q.Date) {
		return nil, invalid("date must be YYYY-MM-DD")
	}
	if q.Status != "" && q.Status != model.ReservationActive && q.Status != model.ReservationCancelled {
		return nil, invalid("unknown status")
	}
	f := repository.ReservationFilter{
		LaboratoryID: q.LaboratoryID,
		TimeSlotID:   q.TimeSlotID,
		Date:         q.Date,
		Status:       q.Status,
	}
	if !actor.IsAdmin() {
		f.ProfessorID = actor.UserID
	}
	out, err := e.reservations.ListBy(ctx, f)
	if err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

// DeleteReservation physically removes a reservation. ADMIN only.
func (e *BookingEngine) DeleteReservation(ctx context.Context, actor SessionContext, id string) error {
	if !actor.IsAdmin() {
		return forbidden("admin only")
	}
	err := e.tx.WithTx(ctx, func(tx *sql.Tx) error {
		n, err := e.reservations.DeleteMany(ctx, tx, repository.ReservationFilter{ID: id})
		if err != nil {
			return err
		}
		if n == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
	return translate(err, "reservation not found")
}

func validDate(s string) bool {
	t, err := time.Parse(model.DateLayout, s)
	return err == nil && t.Format(model.DateLayout) == s
}

func (e *BookingEngine) count(outcome string) {
	metrics.BookingAttempts.WithLabelValues(outcome).Inc()
}

func (e *BookingEngine) logConflict(actor SessionContext, labID, slotID, date string) {
	e.count(metrics.OutcomeConflict)
	e.log.Info("booking conflict",
		zap.String("actor_id", actor.UserID),
		zap.String("laboratory_id", labID),
		zap.String("time_slot_id", slotID),
		zap.String("date", date))
}

// fail records the outcome of a failed booking step and returns err.
func (e *BookingEngine) fail(err error) error {
	if KindOf(err) == KindUnavailable {
		e.count(metrics.OutcomeError)
		e.log.Error("booking storage failure", zap.Error(err))
	} else {
		e.count(metrics.OutcomeRejected)
	}
	return err
}

// publish sends the event in the background with its own deadline; the
// request has already succeeded and must not wait on the broker.
func (e *BookingEngine) publish(typ string, d model.ReservationDetail, actorID string) {
	ev := queue.ReservationEvent{
		Type:           typ,
		ReservationID:  d.ID,
		LaboratoryID:   d.LaboratoryID,
		LaboratoryName: d.Laboratory.Name,
		TimeSlotID:     d.TimeSlotID,
		SlotStart:      d.TimeSlot.Start,
		SlotEnd:        d.TimeSlot.End,
		Date:           d.Date,
		ProfessorID:    d.ProfessorID,
		ActorID:        actorID,
		OccurredAt:     e.now().UTC().Format(time.RFC3339),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.events.Publish(ctx, ev); err != nil {
			e.log.Warn("publish reservation event failed", zap.String("type", typ), zap.String("reservation_id", d.ID), zap.Error(err))
		}
	}()
}
