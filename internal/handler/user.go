package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/labreserve/lab-reservation/internal/config"
	"github.com/labreserve/lab-reservation/internal/service"
)

// UserHandler serves the caller's own account and sessions.
type UserHandler struct {
	accounts *service.AccountService
	sessions *service.SessionManager
	cfg      config.Config
	timeout  time.Duration
	log      *zap.Logger
}

func NewUserHandler(cfg config.Config, accounts *service.AccountService, sessions *service.SessionManager, log *zap.Logger) *UserHandler {
	return &UserHandler{accounts: accounts, sessions: sessions, cfg: cfg, timeout: cfg.RequestTimeout, log: log}
}

func (h *UserHandler) Me(c echo.Context) error {
	sc, err := mustSession(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	u, err := h.accounts.Me(ctx, sc.UserID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, u)
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *UserHandler) ChangePassword(c echo.Context) error {
	sc, err := mustSession(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	if err := h.accounts.ChangePassword(ctx, sc.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password changed"})
}

func (h *UserHandler) ListSessions(c echo.Context) error {
	sc, err := mustSession(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	out, err := h.sessions.ListSessions(ctx, sc.UserID, sc.SessionID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}

type revokeSessionReq struct {
	SessionID string `json:"sessionId" query:"sessionId"`
}

// RevokeSession closes one of the caller's sessions. Revoking the current
// session also clears its cookie.
func (h *UserHandler) RevokeSession(c echo.Context) error {
	sc, err := mustSession(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	var req revokeSessionReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	if err := h.sessions.RevokeOwned(ctx, sc.UserID, req.SessionID); err != nil {
		return writeError(c, h.log, err)
	}
	if req.SessionID == sc.SessionID {
		clearSessionCookie(c, h.cfg)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "session revoked"})
}
