package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/labreserve/lab-reservation/internal/model"
)

// SessionRepo persists login sessions. Rows are never deleted on logout;
// is_active is flipped instead so the history of devices stays visible.
type SessionRepo struct{ db *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

const sessionColumns = "s.id, s.user_id, s.token_hash, s.user_agent, s.ip_address, s.created_at, s.last_active_at, s.expires_at, s.is_active"

// Create inserts a new session row.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, token_hash, user_agent, ip_address, created_at, last_active_at, expires_at, is_active)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		s.ID, s.UserID, s.TokenHash, s.UserAgent, s.IPAddress,
		utc(s.CreatedAt), utc(s.LastActiveAt), utc(s.ExpiresAt), s.IsActive)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// GetWithUser loads session id together with its owner. The owner's role,
// email and first-access flag come from the users table, never from the token.
func (r *SessionRepo) GetWithUser(ctx context.Context, id string) (model.Session, model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+`, u.id, u.name, u.email, u.role, u.first_access
		 FROM sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.id = ? LIMIT 1`, id)
	var (
		s  model.Session
		u  model.User
		ts [3]dbTime
	)
	err := row.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.UserAgent, &s.IPAddress,
		&ts[0], &ts[1], &ts[2], &s.IsActive,
		&u.ID, &u.Name, &u.Email, &u.Role, &u.FirstAccess)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, model.User{}, ErrNotFound
		}
		return model.Session{}, model.User{}, err
	}
	s.CreatedAt, s.LastActiveAt, s.ExpiresAt = ts[0].Time, ts[1].Time, ts[2].Time
	return s, u, nil
}

// Touch records activity on session id. Lost updates are acceptable.
func (r *SessionRepo) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET last_active_at = ? WHERE id = ?", utc(at), id)
	return err
}

// Renew stores a re-signed token and its new expiry on an active session.
func (r *SessionRepo) Renew(ctx context.Context, id, tokenHash string, expiresAt, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET token_hash = ?, expires_at = ?, last_active_at = ? WHERE id = ? AND is_active = ?",
		tokenHash, utc(expiresAt), utc(at), id, true)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// SetExpiry overwrites expires_at. Used by administration tooling and tests
// that need an expired session.
func (r *SessionRepo) SetExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx, "UPDATE sessions SET expires_at = ? WHERE id = ?", utc(expiresAt), id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// Deactivate flips is_active off for session id. Idempotent.
func (r *SessionRepo) Deactivate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE sessions SET is_active = ? WHERE id = ?", false, id)
	return err
}

// DeactivateAllForUser flips is_active off for every active session of userID
// and returns how many were closed.
func (r *SessionRepo) DeactivateAllForUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET is_active = ? WHERE user_id = ? AND is_active = ?", false, userID, true)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetForUser returns session id only when it belongs to userID.
func (r *SessionRepo) GetForUser(ctx context.Context, id, userID string) (model.Session, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions s WHERE s.id = ? AND s.user_id = ? LIMIT 1", id, userID)
	return scanSession(row)
}

// ListActiveByUser returns the active sessions of userID, most recently used
// first. Expiry is checked by the caller so the comparison uses one clock.
func (r *SessionRepo) ListActiveByUser(ctx context.Context, userID string) ([]model.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions s WHERE s.user_id = ? AND s.is_active = ? ORDER BY s.last_active_at DESC",
		userID, true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteByUserTx removes every session of userID inside q.
func (r *SessionRepo) DeleteByUserTx(ctx context.Context, q DBTX, userID string) error {
	_, err := q.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = ?", userID)
	return err
}

func scanSession(s rowScanner) (model.Session, error) {
	var (
		out model.Session
		ts  [3]dbTime
	)
	err := s.Scan(&out.ID, &out.UserID, &out.TokenHash, &out.UserAgent, &out.IPAddress,
		&ts[0], &ts[1], &ts[2], &out.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, ErrNotFound
		}
		return model.Session{}, err
	}
	out.CreatedAt, out.LastActiveAt, out.ExpiresAt = ts[0].Time, ts[1].Time, ts[2].Time
	return out, nil
}
