package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/labreserve/lab-reservation/internal/model"
)

// ReservationRepo is the reservation ledger. The schema carries a unique
// index over (laboratory_id, time_slot_id, date) restricted to ACTIVE rows,
// so Insert is the authoritative double-booking check: a concurrent second
// insert for the same triple fails at commit with ErrConflict no matter what
// FindActiveByTriple reported earlier.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = "id, laboratory_id, time_slot_id, date, professor_id, status, created_at, updated_at"

// ReservationFilter narrows ListBy and DeleteMany. Empty fields match all.
type ReservationFilter struct {
	ID           string
	ProfessorID  string
	LaboratoryID string
	TimeSlotID   string
	Date         string
	Status       string
}

func (f ReservationFilter) empty() bool { return f == ReservationFilter{} }

// where renders the filter against the reservations alias prefix.
func (f ReservationFilter) where(prefix string) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(col, v string) {
		if v != "" {
			conds = append(conds, prefix+col+" = ?")
			args = append(args, v)
		}
	}
	add("id", f.ID)
	add("professor_id", f.ProfessorID)
	add("laboratory_id", f.LaboratoryID)
	add("time_slot_id", f.TimeSlotID)
	add("date", f.Date)
	add("status", f.Status)
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// FindActiveByTriple returns the ACTIVE reservation holding the triple, or
// ErrNotFound when the triple is free.
func (r *ReservationRepo) FindActiveByTriple(ctx context.Context, labID, slotID, date string) (model.Reservation, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE laboratory_id = ? AND time_slot_id = ? AND date = ? AND status = ? LIMIT 1",
		labID, slotID, date, model.ReservationActive)
	return scanReservation(row)
}

// Insert stores res. A unique violation on the active triple is reported as
// ErrConflict.
func (r *ReservationRepo) Insert(ctx context.Context, res *model.Reservation) error {
	now := utc(time.Now())
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = now
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO reservations ("+reservationColumns+") VALUES (?,?,?,?,?,?,?,?)",
		res.ID, res.LaboratoryID, res.TimeSlotID, res.Date, res.ProfessorID, res.Status,
		utc(res.CreatedAt), res.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// GetByID returns reservation id or ErrNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id string) (model.Reservation, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE id = ? LIMIT 1", id)
	return scanReservation(row)
}

// UpdateStatus moves reservation id from status `from` to `to`. The
// transition is conditional so two concurrent cancels cannot both succeed;
// ErrNotFound means no row was in status `from`.
func (r *ReservationRepo) UpdateStatus(ctx context.Context, id, from, to string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE reservations SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		to, utc(time.Now()), id, from)
	if err != nil {
		return err
	}
	return expectRow(res)
}

const detailSelect = `SELECT r.id, r.laboratory_id, r.time_slot_id, r.date, r.professor_id, r.status, r.created_at,
       u.id, u.name, u.email,
       l.id, l.name, l.is_active, l.created_at, l.updated_at,
       t.id, t.start_time, t.end_time, t.is_active, t.created_at, t.updated_at
FROM reservations r
JOIN users u ON u.id = r.professor_id
JOIN laboratories l ON l.id = r.laboratory_id
JOIN time_slots t ON t.id = r.time_slot_id`

// GetDetail returns reservation id with its professor, laboratory and slot.
func (r *ReservationRepo) GetDetail(ctx context.Context, id string) (model.ReservationDetail, error) {
	row := r.db.QueryRowContext(ctx, detailSelect+" WHERE r.id = ? LIMIT 1", id)
	return scanDetail(row)
}

// ListBy returns the reservations matching f ordered by date, then slot start.
func (r *ReservationRepo) ListBy(ctx context.Context, f ReservationFilter) ([]model.ReservationDetail, error) {
	where, args := f.where("r.")
	rows, err := r.db.QueryContext(ctx,
		detailSelect+where+" ORDER BY r.date ASC, t.start_time ASC, r.created_at ASC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ReservationDetail{}
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteMany hard-deletes the reservations matching f inside q. An empty
// filter is refused rather than wiping the ledger.
func (r *ReservationRepo) DeleteMany(ctx context.Context, q DBTX, f ReservationFilter) (int64, error) {
	if f.empty() {
		return 0, errors.New("repository: refusing to delete reservations without a filter")
	}
	where, args := f.where("")
	res, err := q.ExecContext(ctx, "DELETE FROM reservations"+where, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CascadeCancelByLaboratory cancels every ACTIVE reservation of labID inside q.
func (r *ReservationRepo) CascadeCancelByLaboratory(ctx context.Context, q DBTX, labID string) (int64, error) {
	return r.cancelWhere(ctx, q, "laboratory_id", labID)
}

// CascadeCancelByTimeSlot cancels every ACTIVE reservation of slotID inside q.
func (r *ReservationRepo) CascadeCancelByTimeSlot(ctx context.Context, q DBTX, slotID string) (int64, error) {
	return r.cancelWhere(ctx, q, "time_slot_id", slotID)
}

// CascadeDeleteByProfessor hard-deletes every reservation of profID inside q.
func (r *ReservationRepo) CascadeDeleteByProfessor(ctx context.Context, q DBTX, profID string) (int64, error) {
	return r.DeleteMany(ctx, q, ReservationFilter{ProfessorID: profID})
}

func (r *ReservationRepo) cancelWhere(ctx context.Context, q DBTX, col, id string) (int64, error) {
	res, err := q.ExecContext(ctx,
		"UPDATE reservations SET status = ?, updated_at = ? WHERE "+col+" = ? AND status = ?",
		model.ReservationCancelled, utc(time.Now()), id, model.ReservationActive)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanReservation(s rowScanner) (model.Reservation, error) {
	var (
		res              model.Reservation
		created, updated dbTime
	)
	err := s.Scan(&res.ID, &res.LaboratoryID, &res.TimeSlotID, &res.Date, &res.ProfessorID, &res.Status, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Reservation{}, ErrNotFound
		}
		return model.Reservation{}, err
	}
	res.CreatedAt, res.UpdatedAt = created.Time, updated.Time
	return res, nil
}

func scanDetail(s rowScanner) (model.ReservationDetail, error) {
	var (
		d  model.ReservationDetail
		ts [5]dbTime
	)
	err := s.Scan(
		&d.ID, &d.LaboratoryID, &d.TimeSlotID, &d.Date, &d.ProfessorID, &d.Status, &ts[0],
		&d.Professor.ID, &d.Professor.Name, &d.Professor.Email,
		&d.Laboratory.ID, &d.Laboratory.Name, &d.Laboratory.IsActive, &ts[1], &ts[2],
		&d.TimeSlot.ID, &d.TimeSlot.Start, &d.TimeSlot.End, &d.TimeSlot.IsActive, &ts[3], &ts[4],
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ReservationDetail{}, ErrNotFound
		}
		return model.ReservationDetail{}, err
	}
	d.CreatedAt = ts[0].Time
	d.Laboratory.CreatedAt, d.Laboratory.UpdatedAt = ts[1].Time, ts[2].Time
	d.TimeSlot.CreatedAt, d.TimeSlot.UpdatedAt = ts[3].Time, ts[4].Time
	return d, nil
}
