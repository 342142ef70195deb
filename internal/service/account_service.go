package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/labreserve/lab-reservation/internal/model"
	"github.com/labreserve/lab-reservation/internal/repository"
	"github.com/labreserve/lab-reservation/internal/utils"
)

// ProfessorUpdate is a partial edit. Nil fields are left untouched; a
// present Password is always re-hashed.
type ProfessorUpdate struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// AccountService covers credentials and professor administration.
type AccountService struct {
	users           *repository.UserRepo
	sessions        *repository.SessionRepo
	reservations    *repository.ReservationRepo
	tx              *repository.TxRunner
	bcryptCost      int
	defaultPassword string
	log             *zap.Logger
}

func NewAccountService(db *sql.DB, bcryptCost int, defaultPassword string, log *zap.Logger) *AccountService {
	return &AccountService{
		users:           repository.NewUserRepo(db),
		sessions:        repository.NewSessionRepo(db),
		reservations:    repository.NewReservationRepo(db),
		tx:              repository.NewTxRunner(db),
		bcryptCost:      bcryptCost,
		defaultPassword: defaultPassword,
		log:             log,
	}
}

// Authenticate checks email and password. Unknown emails and wrong
// passwords both yield ErrInvalidCredentials.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (model.User, error) {
	email = repository.NormalizeEmail(email)
	if email == "" || password == "" {
		return model.User{}, invalid("email and password are required")
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, ErrInvalidCredentials
		}
		return model.User{}, unavailable(err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return model.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Me returns the caller's own account.
func (s *AccountService) Me(ctx context.Context, userID string) (model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.User{}, translate(err, "user not found")
	}
	return u, nil
}

// ChangePassword verifies current, stores the hash of next and clears the
// first-access flag.
func (s *AccountService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if current == "" || next == "" {
		return invalid("currentPassword and newPassword are required")
	}
	if err := passwordPolicy(next, "new password"); err != nil {
		return err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return translate(err, "user not found")
	}
	if !utils.VerifyPassword(u.PasswordHash, current) {
		return invalid("current password is incorrect")
	}
	hash, err := utils.HashPassword(next, s.bcryptCost)
	if err != nil {
		return unavailable(err)
	}
	cleared := false
	if err := s.users.Update(ctx, userID, repository.UserUpdate{PasswordHash: &hash, FirstAccess: &cleared}); err != nil {
		return translate(err, "user not found")
	}
	s.log.Info("password changed", zap.String("user_id", userID))
	return nil
}

func (s *AccountService) ListProfessors(ctx context.Context, actor SessionContext) ([]model.User, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("admin only")
	}
	out, err := s.users.ListByRole(ctx, model.RoleProfessor)
	if err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

// GetProfessor is allowed to an ADMIN or to the professor themself.
func (s *AccountService) GetProfessor(ctx context.Context, actor SessionContext, id string) (model.User, error) {
	if !actor.IsAdmin() && actor.UserID != id {
		return model.User{}, forbidden("admin only")
	}
	return s.professor(ctx, id)
}

// CreateProfessor adds a PROFESSOR with the configured default password.
// The account must change it on first access.
func (s *AccountService) CreateProfessor(ctx context.Context, actor SessionContext, name, email string) (model.User, error) {
	if !actor.IsAdmin() {
		return model.User{}, forbidden("admin only")
	}
	name = strings.TrimSpace(name)
	email = repository.NormalizeEmail(email)
	if name == "" || email == "" {
		return model.User{}, invalid("name and email are required")
	}
	if !validEmail(email) {
		return model.User{}, invalid("invalid email")
	}
	hash, err := utils.HashPassword(s.defaultPassword, s.bcryptCost)
	if err != nil {
		return model.User{}, unavailable(err)
	}
	u := model.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleProfessor,
		FirstAccess:  true,
	}
	if err := s.users.Create(ctx, &u); err != nil {
		return model.User{}, translate(err, "user not found")
	}
	s.log.Info("professor created", zap.String("user_id", u.ID), zap.String("actor_id", actor.UserID))
	return u, nil
}

// UpdateProfessor applies upd to professor id. ADMIN or self.
func (s *AccountService) UpdateProfessor(ctx context.Context, actor SessionContext, id string, upd ProfessorUpdate) (model.User, error) {
	if !actor.IsAdmin() && actor.UserID != id {
		return model.User{}, forbidden("admin only")
	}
	if _, err := s.professor(ctx, id); err != nil {
		return model.User{}, err
	}
	var ru repository.UserUpdate
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return model.User{}, invalid("name must not be empty")
		}
		ru.Name = &name
	}
	if upd.Email != nil {
		email := repository.NormalizeEmail(*upd.Email)
		if email == "" || !validEmail(email) {
			return model.User{}, invalid("invalid email")
		}
		ru.Email = &email
	}
	if upd.Password != nil {
		if err := passwordPolicy(*upd.Password, "password"); err != nil {
			return model.User{}, err
		}
		hash, err := utils.HashPassword(*upd.Password, s.bcryptCost)
		if err != nil {
			return model.User{}, unavailable(err)
		}
		ru.PasswordHash = &hash
	}
	if err := s.users.Update(ctx, id, ru); err != nil {
		return model.User{}, translate(err, "professor not found")
	}
	return s.professor(ctx, id)
}

// DeleteProfessor hard-deletes professor id with every reservation and
// session they own, in one transaction.
func (s *AccountService) DeleteProfessor(ctx context.Context, actor SessionContext, id string) error {
	if !actor.IsAdmin() {
		return forbidden("admin only")
	}
	if _, err := s.professor(ctx, id); err != nil {
		return err
	}
	var removed int64
	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		n, err := s.reservations.CascadeDeleteByProfessor(ctx, tx, id)
		if err != nil {
			return err
		}
		removed = n
		if err := s.sessions.DeleteByUserTx(ctx, tx, id); err != nil {
			return err
		}
		return s.users.DeleteTx(ctx, tx, id)
	})
	if err != nil {
		return translate(err, "professor not found")
	}
	s.log.Info("professor deleted", zap.String("user_id", id), zap.Int64("reservations_deleted", removed), zap.String("actor_id", actor.UserID))
	return nil
}

func (s *AccountService) professor(ctx context.Context, id string) (model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.User{}, translate(err, "professor not found")
	}
	if u.Role != model.RoleProfessor {
		return model.User{}, notFound("professor not found")
	}
	return u, nil
}

// passwordPolicy reports a password the hasher would refuse as invalid
// input. label names the field in the message.
func passwordPolicy(plain, label string) error {
	switch err := utils.CheckPasswordPolicy(plain); {
	case errors.Is(err, utils.ErrPasswordTooShort):
		return invalid(fmt.Sprintf("%s must have at least %d characters", label, utils.MinPasswordLength))
	case errors.Is(err, utils.ErrPasswordTooLong):
		return invalid(fmt.Sprintf("%s must be at most %d bytes", label, utils.MaxPasswordBytes))
	}
	return nil
}

func validEmail(s string) bool {
	a, err := mail.ParseAddress(s)
	return err == nil && a.Address == s
}

// EnsureUser creates the account unless one with that email exists, and
// reports whether it was created. Used by the seed command.
func (s *AccountService) EnsureUser(ctx context.Context, name, email, role, password string, firstAccess bool) (model.User, bool, error) {
	if !model.ValidRole(role) {
		return model.User{}, false, invalid("unknown role")
	}
	existing, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, false, unavailable(err)
	}
	if err := passwordPolicy(password, "password"); err != nil {
		return model.User{}, false, err
	}
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return model.User{}, false, unavailable(err)
	}
	u := model.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		FirstAccess:  firstAccess,
	}
	if err := s.users.Create(ctx, &u); err != nil {
		return model.User{}, false, translate(err, "user not found")
	}
	return u, true, nil
}
