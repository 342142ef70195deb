package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/labreserve/lab-reservation/internal/model"
)

// UserRepo is the credential store: users, their password hashes and roles.
type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = "id, name, email, password_hash, role, first_access, created_at, updated_at"

// NormalizeEmail lower-cases and trims an email before it is stored or looked up.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Create inserts u. The caller supplies ID, PasswordHash and Role; email is
// normalized and timestamps are set here.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	now := utc(time.Now())
	u.Email = NormalizeEmail(u.Email)
	u.CreatedAt, u.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?,?,?,?,?,?,?,?)",
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.FirstAccess, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrEmailExists
	}
	return err
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ? LIMIT 1", NormalizeEmail(email))
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1", id)
	return scanUser(row)
}

// ListByRole returns every user with role ordered by name.
func (r *UserRepo) ListByRole(ctx context.Context, role string) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE role = ? ORDER BY name, email", role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UserUpdate lists the columns an update may change. Nil fields are left
// untouched. PasswordHash must already be hashed.
type UserUpdate struct {
	Name         *string
	Email        *string
	PasswordHash *string
	FirstAccess  *bool
}

// Update applies the non-nil fields of upd to user id.
func (r *UserRepo) Update(ctx context.Context, id string, upd UserUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []any{utc(time.Now())}
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, NormalizeEmail(*upd.Email))
	}
	if upd.PasswordHash != nil {
		sets = append(sets, "password_hash = ?")
		args = append(args, *upd.PasswordHash)
	}
	if upd.FirstAccess != nil {
		sets = append(sets, "first_access = ?")
		args = append(args, *upd.FirstAccess)
	}
	args = append(args, id)
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return err
	}
	return expectRow(res)
}

// DeleteTx removes user id inside q. Sessions go with it (ON DELETE CASCADE);
// callers remove reservations first.
func (r *UserRepo) DeleteTx(ctx context.Context, q DBTX, id string) error {
	res, err := q.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (model.User, error) {
	var (
		u                model.User
		created, updated dbTime
	)
	err := s.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.FirstAccess, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	u.CreatedAt, u.UpdatedAt = created.Time, updated.Time
	return u, nil
}

// expectRow turns a zero-row update or delete into ErrNotFound.
func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
