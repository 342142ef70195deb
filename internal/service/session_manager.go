package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/labreserve/lab-reservation/internal/metrics"
	"github.com/labreserve/lab-reservation/internal/model"
	"github.com/labreserve/lab-reservation/internal/repository"
	"github.com/labreserve/lab-reservation/internal/utils"
)

// SessionContext is the identity of an authenticated request. Role, email
// and FirstAccess come from the users table at resolution time.
type SessionContext struct {
	UserID      string
	Name        string
	Email       string
	Role        string
	SessionID   string
	FirstAccess bool
}

// IsAdmin reports whether the caller holds the ADMIN role.
func (s SessionContext) IsAdmin() bool { return s.Role == model.RoleAdmin }

// IssuedSession is a persisted session plus the signed token that refers to
// it. Token is never stored; only its hash is.
type IssuedSession struct {
	Session model.Session
	Token   string
}

// SessionView is what a user sees about one of their sessions.
type SessionView struct {
	ID           string    `json:"id"`
	UserAgent    string    `json:"userAgent"`
	IPAddress    string    `json:"ipAddress"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Current      bool      `json:"current"`
}

// SessionManager binds signed tokens to server-side session rows.
type SessionManager struct {
	sessions *repository.SessionRepo
	secret   string
	ttl      time.Duration
	log      *zap.Logger
	now      func() time.Time
}

// NewSessionManager returns a SessionManager signing with secret. Sessions
// live for ttl from issuance or renewal.
func NewSessionManager(sessions *repository.SessionRepo, secret string, ttl time.Duration, log *zap.Logger) *SessionManager {
	return &SessionManager{sessions: sessions, secret: secret, ttl: ttl, log: log, now: time.Now}
}

// SetClock replaces the time source.
func (m *SessionManager) SetClock(now func() time.Time) { m.now = now }

// Issue creates a new active session for user and returns its token.
func (m *SessionManager) Issue(ctx context.Context, user model.User, userAgent, ip string) (IssuedSession, error) {
	now := m.now()
	exp := now.Add(m.ttl)
	id := uuid.NewString()

	tok, err := utils.SignSessionToken(m.secret, user.ID, user.Email, user.Role, id, now, exp)
	if err != nil {
		return IssuedSession{}, unavailable(err)
	}
	s := model.Session{
		ID:           id,
		UserID:       user.ID,
		TokenHash:    utils.HashToken(tok.Token),
		UserAgent:    userAgent,
		IPAddress:    ip,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    exp,
		IsActive:     true,
	}
	if err := m.sessions.Create(ctx, &s); err != nil {
		m.log.Error("create session failed", zap.String("user_id", user.ID), zap.Error(err))
		return IssuedSession{}, unavailable(err)
	}
	metrics.SessionsIssued.Inc()
	return IssuedSession{Session: s, Token: tok.Token}, nil
}

// Resolve authenticates raw. The token claim and the stored row are both
// checked for expiry; the stored token hash and owner must match as well.
// Every rejection is ErrUnauthenticated. Storage failures are Unavailable so
// an outage is not reported as a logout.
func (m *SessionManager) Resolve(ctx context.Context, raw string) (SessionContext, error) {
	if raw == "" {
		return SessionContext{}, ErrUnauthenticated
	}
	now := m.now()
	claims, err := utils.ParseSessionToken(m.secret, raw, now)
	if err != nil {
		return SessionContext{}, ErrUnauthenticated
	}
	s, u, err := m.sessions.GetWithUser(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return SessionContext{}, ErrUnauthenticated
		}
		return SessionContext{}, unavailable(err)
	}
	if !s.ValidAt(now) || s.UserID != claims.UserID {
		return SessionContext{}, ErrUnauthenticated
	}
	if subtle.ConstantTimeCompare([]byte(s.TokenHash), []byte(utils.HashToken(raw))) != 1 {
		return SessionContext{}, ErrUnauthenticated
	}
	if err := m.sessions.Touch(ctx, s.ID, now); err != nil {
		m.log.Warn("touch session failed", zap.String("session_id", s.ID), zap.Error(err))
	}
	return SessionContext{
		UserID:      u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		SessionID:   s.ID,
		FirstAccess: u.FirstAccess,
	}, nil
}

// Renew re-signs the token of a currently valid session and pushes its
// expiry to now+ttl. The previous token stops resolving.
func (m *SessionManager) Renew(ctx context.Context, sessionID string) (IssuedSession, error) {
	now := m.now()
	s, u, err := m.sessions.GetWithUser(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return IssuedSession{}, ErrUnauthenticated
		}
		return IssuedSession{}, unavailable(err)
	}
	if !s.ValidAt(now) {
		return IssuedSession{}, ErrUnauthenticated
	}
	exp := now.Add(m.ttl)
	tok, err := utils.SignSessionToken(m.secret, u.ID, u.Email, u.Role, s.ID, now, exp)
	if err != nil {
		return IssuedSession{}, unavailable(err)
	}
	hash := utils.HashToken(tok.Token)
	if err := m.sessions.Renew(ctx, s.ID, hash, exp, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return IssuedSession{}, ErrUnauthenticated
		}
		return IssuedSession{}, unavailable(err)
	}
	s.TokenHash, s.ExpiresAt, s.LastActiveAt = hash, exp, now
	return IssuedSession{Session: s, Token: tok.Token}, nil
}

// Revoke deactivates sessionID. Revoking an inactive or unknown session is
// not an error.
func (m *SessionManager) Revoke(ctx context.Context, sessionID string) error {
	if err := m.sessions.Deactivate(ctx, sessionID); err != nil {
		return unavailable(err)
	}
	metrics.SessionsRevoked.Inc()
	return nil
}

// RevokeAll deactivates every active session of userID.
func (m *SessionManager) RevokeAll(ctx context.Context, userID string) (int64, error) {
	n, err := m.sessions.DeactivateAllForUser(ctx, userID)
	if err != nil {
		return 0, unavailable(err)
	}
	metrics.SessionsRevoked.Add(float64(n))
	return n, nil
}

// ListSessions returns the valid sessions of userID, most recently used
// first. currentID marks the session making the request.
func (m *SessionManager) ListSessions(ctx context.Context, userID, currentID string) ([]SessionView, error) {
	rows, err := m.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, unavailable(err)
	}
	now := m.now()
	out := make([]SessionView, 0, len(rows))
	for _, s := range rows {
		if !s.ValidAt(now) {
			continue
		}
		out = append(out, SessionView{
			ID:           s.ID,
			UserAgent:    s.UserAgent,
			IPAddress:    s.IPAddress,
			CreatedAt:    s.CreatedAt,
			LastActiveAt: s.LastActiveAt,
			ExpiresAt:    s.ExpiresAt,
			Current:      s.ID == currentID,
		})
	}
	return out, nil
}

// RevokeOwned deactivates sessionID if it belongs to userID, NotFound
// otherwise.
func (m *SessionManager) RevokeOwned(ctx context.Context, userID, sessionID string) error {
	if sessionID == "" {
		return invalid("sessionId is required")
	}
	if _, err := m.sessions.GetForUser(ctx, sessionID, userID); err != nil {
		return translate(err, "session not found")
	}
	return m.Revoke(ctx, sessionID)
}
