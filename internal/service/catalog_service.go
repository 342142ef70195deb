package service

import (
	"context"
	"database/sql"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/labreserve/lab-reservation/internal/model"
	"github.com/labreserve/lab-reservation/internal/repository"
)

var clockRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// CatalogService manages laboratories and time slots. Removing either is a
// soft delete that cancels the ACTIVE reservations referencing it in the
// same transaction.
type CatalogService struct {
	labs         *repository.LaboratoryRepo
	slots        *repository.TimeSlotRepo
	reservations *repository.ReservationRepo
	tx           *repository.TxRunner
	log          *zap.Logger
}

func NewCatalogService(db *sql.DB, log *zap.Logger) *CatalogService {
	return &CatalogService{
		labs:         repository.NewLaboratoryRepo(db),
		slots:        repository.NewTimeSlotRepo(db),
		reservations: repository.NewReservationRepo(db),
		tx:           repository.NewTxRunner(db),
		log:          log,
	}
}

func (s *CatalogService) ListLaboratories(ctx context.Context) ([]model.Laboratory, error) {
	out, err := s.labs.List(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *CatalogService) GetLaboratory(ctx context.Context, id string) (model.Laboratory, error) {
	l, err := s.labs.GetByID(ctx, id)
	if err != nil {
		return model.Laboratory{}, translate(err, "laboratory not found")
	}
	return l, nil
}

func (s *CatalogService) CreateLaboratory(ctx context.Context, name string) (model.Laboratory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Laboratory{}, invalid("name is required")
	}
	l := model.Laboratory{ID: uuid.NewString(), Name: name}
	if err := s.labs.Create(ctx, &l); err != nil {
		return model.Laboratory{}, translate(err, "laboratory not found")
	}
	return l, nil
}

func (s *CatalogService) UpdateLaboratory(ctx context.Context, id, name string) (model.Laboratory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Laboratory{}, invalid("name is required")
	}
	if err := s.labs.UpdateName(ctx, id, name); err != nil {
		return model.Laboratory{}, translate(err, "laboratory not found")
	}
	return s.GetLaboratory(ctx, id)
}

// DeleteLaboratory deactivates laboratory id and cancels its ACTIVE
// reservations atomically.
func (s *CatalogService) DeleteLaboratory(ctx context.Context, id string) error {
	var cancelled int64
	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.labs.DeactivateTx(ctx, tx, id); err != nil {
			return err
		}
		n, err := s.reservations.CascadeCancelByLaboratory(ctx, tx, id)
		cancelled = n
		return err
	})
	if err != nil {
		return translate(err, "laboratory not found")
	}
	s.log.Info("laboratory removed", zap.String("laboratory_id", id), zap.Int64("reservations_cancelled", cancelled))
	return nil
}

func (s *CatalogService) ListTimeSlots(ctx context.Context) ([]model.TimeSlot, error) {
	out, err := s.slots.List(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *CatalogService) GetTimeSlot(ctx context.Context, id string) (model.TimeSlot, error) {
	ts, err := s.slots.GetByID(ctx, id)
	if err != nil {
		return model.TimeSlot{}, translate(err, "time slot not found")
	}
	return ts, nil
}

// CreateTimeSlot adds the window [start, end). It must not overlap any live
// slot.
func (s *CatalogService) CreateTimeSlot(ctx context.Context, start, end string) (model.TimeSlot, error) {
	ts := model.TimeSlot{ID: uuid.NewString(), Start: strings.TrimSpace(start), End: strings.TrimSpace(end)}
	if err := s.checkSlot(ctx, ts); err != nil {
		return model.TimeSlot{}, err
	}
	if err := s.slots.Create(ctx, &ts); err != nil {
		return model.TimeSlot{}, translate(err, "time slot not found")
	}
	return ts, nil
}

func (s *CatalogService) UpdateTimeSlot(ctx context.Context, id, start, end string) (model.TimeSlot, error) {
	if _, err := s.slots.GetByID(ctx, id); err != nil {
		return model.TimeSlot{}, translate(err, "time slot not found")
	}
	ts := model.TimeSlot{ID: id, Start: strings.TrimSpace(start), End: strings.TrimSpace(end)}
	if err := s.checkSlot(ctx, ts); err != nil {
		return model.TimeSlot{}, err
	}
	if err := s.slots.Update(ctx, id, ts.Start, ts.End); err != nil {
		return model.TimeSlot{}, translate(err, "time slot not found")
	}
	return s.GetTimeSlot(ctx, id)
}

// DeleteTimeSlot deactivates slot id and cancels its ACTIVE reservations
// atomically.
func (s *CatalogService) DeleteTimeSlot(ctx context.Context, id string) error {
	var cancelled int64
	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.slots.DeactivateTx(ctx, tx, id); err != nil {
			return err
		}
		n, err := s.reservations.CascadeCancelByTimeSlot(ctx, tx, id)
		cancelled = n
		return err
	})
	if err != nil {
		return translate(err, "time slot not found")
	}
	s.log.Info("time slot removed", zap.String("time_slot_id", id), zap.Int64("reservations_cancelled", cancelled))
	return nil
}

func (s *CatalogService) checkSlot(ctx context.Context, ts model.TimeSlot) error {
	if ts.Start == "" || ts.End == "" {
		return invalid("start and end are required")
	}
	if !clockRe.MatchString(ts.Start) || !clockRe.MatchString(ts.End) {
		return invalid("start and end must be HH:MM")
	}
	if ts.Start >= ts.End {
		return invalid("start must be before end")
	}
	existing, err := s.slots.List(ctx)
	if err != nil {
		return unavailable(err)
	}
	for _, o := range existing {
		if o.ID != ts.ID && ts.Overlaps(o) {
			return invalid("time slot overlaps " + o.Start + "-" + o.End)
		}
	}
	return nil
}
