package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/labreserve/lab-reservation/internal/config"
	"github.com/labreserve/lab-reservation/internal/model"
	"github.com/labreserve/lab-reservation/internal/service"
)

// AuthHandler serves login, logout and token refresh.
type AuthHandler struct {
	cfg      config.Config
	accounts *service.AccountService
	sessions *service.SessionManager
	log      *zap.Logger
}

func NewAuthHandler(cfg config.Config, accounts *service.AccountService, sessions *service.SessionManager, log *zap.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, accounts: accounts, sessions: sessions, log: log}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResp struct {
	User      model.User `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

type tokenResp struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login verifies credentials, opens a session and sets the session cookie.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}
	ctx, cancel := requestContext(c, h.cfg.RequestTimeout)
	defer cancel()

	u, err := h.accounts.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return writeError(c, h.log, err)
	}
	issued, err := h.sessions.Issue(ctx, u, c.Request().UserAgent(), c.RealIP())
	if err != nil {
		return writeError(c, h.log, err)
	}
	h.setCookie(c, issued.Token)
	h.log.Info("login", zap.String("user_id", u.ID), zap.String("session_id", issued.Session.ID))
	return c.JSON(http.StatusOK, loginResp{User: u, Token: issued.Token, ExpiresAt: issued.Session.ExpiresAt})
}

// Logout closes the calling session.
func (h *AuthHandler) Logout(c echo.Context) error {
	sc, err := mustSession(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	ctx, cancel := requestContext(c, h.cfg.RequestTimeout)
	defer cancel()
	if err := h.sessions.Revoke(ctx, sc.SessionID); err != nil {
		return writeError(c, h.log, err)
	}
	h.clearCookie(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// LogoutAll closes every session of the caller, including this one.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	sc, err := mustSession(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	ctx, cancel := requestContext(c, h.cfg.RequestTimeout)
	defer cancel()
	n, err := h.sessions.RevokeAll(ctx, sc.UserID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	h.clearCookie(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out from all sessions", "revoked": n})
}

// Refresh re-signs the calling session's token with a fresh expiry.
func (h *AuthHandler) Refresh(c echo.Context) error {
	sc, err := mustSession(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	ctx, cancel := requestContext(c, h.cfg.RequestTimeout)
	defer cancel()
	issued, err := h.sessions.Renew(ctx, sc.SessionID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	h.setCookie(c, issued.Token)
	return c.JSON(http.StatusOK, tokenResp{Token: issued.Token, ExpiresAt: issued.Session.ExpiresAt})
}

func (h *AuthHandler) setCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cfg.SessionTTL / time.Second),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearCookie(c echo.Context) { clearSessionCookie(c, h.cfg) }

func clearSessionCookie(c echo.Context, cfg config.Config) {
	c.SetCookie(&http.Cookie{
		Name:     cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}
