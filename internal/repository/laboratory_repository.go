package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/labreserve/lab-reservation/internal/model"
)

// LaboratoryRepo provides CRUD operations for laboratories. Reads only see
// active rows; deletion is a soft delete performed by DeactivateTx.
type LaboratoryRepo struct{ db *sql.DB }

func NewLaboratoryRepo(db *sql.DB) *LaboratoryRepo { return &LaboratoryRepo{db: db} }

// Create inserts l with the caller-supplied ID.
func (r *LaboratoryRepo) Create(ctx context.Context, l *model.Laboratory) error {
	now := utc(time.Now())
	l.IsActive, l.CreatedAt, l.UpdatedAt = true, now, now
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO laboratories (id, name, is_active, created_at, updated_at) VALUES (?,?,?,?,?)",
		l.ID, l.Name, l.IsActive, l.CreatedAt, l.UpdatedAt)
	return err
}

// GetByID returns the active laboratory id or ErrNotFound.
func (r *LaboratoryRepo) GetByID(ctx context.Context, id string) (model.Laboratory, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, name, is_active, created_at, updated_at FROM laboratories WHERE id = ? AND is_active = ? LIMIT 1",
		id, true)
	return scanLaboratory(row)
}

// List returns every active laboratory ordered by name.
func (r *LaboratoryRepo) List(ctx context.Context) ([]model.Laboratory, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, is_active, created_at, updated_at FROM laboratories WHERE is_active = ? ORDER BY name", true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Laboratory{}
	for rows.Next() {
		l, err := scanLaboratory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// UpdateName renames an active laboratory.
func (r *LaboratoryRepo) UpdateName(ctx context.Context, id, name string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE laboratories SET name = ?, updated_at = ? WHERE id = ? AND is_active = ?",
		name, utc(time.Now()), id, true)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// DeactivateTx soft-deletes laboratory id inside q.
func (r *LaboratoryRepo) DeactivateTx(ctx context.Context, q DBTX, id string) error {
	res, err := q.ExecContext(ctx,
		"UPDATE laboratories SET is_active = ?, updated_at = ? WHERE id = ? AND is_active = ?",
		false, utc(time.Now()), id, true)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func scanLaboratory(s rowScanner) (model.Laboratory, error) {
	var (
		l                model.Laboratory
		created, updated dbTime
	)
	if err := s.Scan(&l.ID, &l.Name, &l.IsActive, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Laboratory{}, ErrNotFound
		}
		return model.Laboratory{}, err
	}
	l.CreatedAt, l.UpdatedAt = created.Time, updated.Time
	return l, nil
}
