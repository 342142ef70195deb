package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/labreserve/lab-reservation/internal/model"
)

// TimeSlotRepo provides CRUD operations for time slots. Like laboratories,
// slots are soft-deleted so past reservations keep their window.
type TimeSlotRepo struct{ db *sql.DB }

func NewTimeSlotRepo(db *sql.DB) *TimeSlotRepo { return &TimeSlotRepo{db: db} }

const timeSlotColumns = "id, start_time, end_time, is_active, created_at, updated_at"

// Create inserts ts with the caller-supplied ID.
func (r *TimeSlotRepo) Create(ctx context.Context, ts *model.TimeSlot) error {
	now := utc(time.Now())
	ts.IsActive, ts.CreatedAt, ts.UpdatedAt = true, now, now
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO time_slots ("+timeSlotColumns+") VALUES (?,?,?,?,?,?)",
		ts.ID, ts.Start, ts.End, ts.IsActive, ts.CreatedAt, ts.UpdatedAt)
	return err
}

// GetByID returns the active slot id or ErrNotFound.
func (r *TimeSlotRepo) GetByID(ctx context.Context, id string) (model.TimeSlot, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+timeSlotColumns+" FROM time_slots WHERE id = ? AND is_active = ? LIMIT 1", id, true)
	return scanTimeSlot(row)
}

// List returns every active slot ordered by start time.
func (r *TimeSlotRepo) List(ctx context.Context) ([]model.TimeSlot, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+timeSlotColumns+" FROM time_slots WHERE is_active = ? ORDER BY start_time", true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.TimeSlot{}
	for rows.Next() {
		ts, err := scanTimeSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

// Update changes the window of an active slot.
func (r *TimeSlotRepo) Update(ctx context.Context, id, start, end string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE time_slots SET start_time = ?, end_time = ?, updated_at = ? WHERE id = ? AND is_active = ?",
		start, end, utc(time.Now()), id, true)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// DeactivateTx soft-deletes slot id inside q.
func (r *TimeSlotRepo) DeactivateTx(ctx context.Context, q DBTX, id string) error {
	res, err := q.ExecContext(ctx,
		"UPDATE time_slots SET is_active = ?, updated_at = ? WHERE id = ? AND is_active = ?",
		false, utc(time.Now()), id, true)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func scanTimeSlot(s rowScanner) (model.TimeSlot, error) {
	var (
		ts               model.TimeSlot
		created, updated dbTime
	)
	if err := s.Scan(&ts.ID, &ts.Start, &ts.End, &ts.IsActive, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.TimeSlot{}, ErrNotFound
		}
		return model.TimeSlot{}, err
	}
	ts.CreatedAt, ts.UpdatedAt = created.Time, updated.Time
	return ts, nil
}
