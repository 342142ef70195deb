package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/labreserve/lab-reservation/internal/service"
)

// Context keys set by Authenticate.
const (
	sessionKey = "session"
	userIDKey  = "user_id"
)

// TokenFromRequest returns the session token carried by the cookie named
// cookieName, falling back to an Authorization: Bearer header.
func TokenFromRequest(c echo.Context, cookieName string) string {
	if ck, err := c.Cookie(cookieName); err == nil && ck.Value != "" {
		return ck.Value
	}
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// SessionResolver turns a raw token into the caller's identity.
// *service.SessionManager implements it.
type SessionResolver interface {
	Resolve(ctx context.Context, raw string) (service.SessionContext, error)
}

// Authenticate resolves the request's session through sr, bounded by
// timeout, and stores the identity for CurrentSession. Every rejection is a
// 401 with the same body; a storage outage is a 500.
func Authenticate(sr SessionResolver, cookieName string, timeout time.Duration, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			sc, err := sr.Resolve(ctx, TokenFromRequest(c, cookieName))
			cancel()
			if err != nil {
				if service.KindOf(err) == service.KindUnavailable {
					log.Error("session resolve failed", zap.Error(err))
					return c.JSON(http.StatusInternalServerError, echo.Map{"error": "service unavailable"})
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
			}
			c.Set(sessionKey, sc)
			c.Set(userIDKey, sc.UserID)
			return next(c)
		}
	}
}

// CurrentSession returns the identity stored by Authenticate.
func CurrentSession(c echo.Context) (service.SessionContext, bool) {
	sc, ok := c.Get(sessionKey).(service.SessionContext)
	return sc, ok
}
