package model

import "time"

// Role names stored in users.role.
const (
	RoleAdmin     = "ADMIN"
	RoleProfessor = "PROFESSOR"
)

// User represents an account as stored in the `users` table. The json tags
// expose only what clients may see; the password hash never leaves the server.
//
// Fields:
//
//	ID           – primary key identifier (uuid).
//	Name         – display name.
//	Email        – unique, normalized email address.
//	PasswordHash – bcrypt hash of the password.
//	Role         – ADMIN or PROFESSOR.
//	FirstAccess  – when true the user must change the password before using the API.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	FirstAccess  bool      `json:"firstAccess"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the user holds the ADMIN role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// ValidRole reports whether r is one of the known role names.
func ValidRole(r string) bool { return r == RoleAdmin || r == RoleProfessor }
