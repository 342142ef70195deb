package model

import "time"

// Session is the server-side record of one login. Only the SHA-256 hash of
// the signed token is persisted. A session is valid iff IsActive is true and
// ExpiresAt lies in the future.
type Session struct {
	ID           string    // sessions.id
	UserID       string    // sessions.user_id
	TokenHash    string    // sessions.token_hash
	UserAgent    string    // sessions.user_agent
	IPAddress    string    // sessions.ip_address
	CreatedAt    time.Time // sessions.created_at
	LastActiveAt time.Time // sessions.last_active_at
	ExpiresAt    time.Time // sessions.expires_at
	IsActive     bool      // sessions.is_active
}

// ValidAt reports whether the session may authenticate a request at now.
func (s Session) ValidAt(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}
