package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/labreserve/lab-reservation/internal/middleware"
	"github.com/labreserve/lab-reservation/internal/service"
)

// statusFor maps a service error kind to its HTTP status.
func statusFor(k service.Kind) int {
	switch k {
	case service.KindInvalidArgument:
		return http.StatusBadRequest
	case service.KindUnauthenticated:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": msg}. Unclassified errors are logged
// and reported without detail.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	kind := service.KindOf(err)
	msg := "service unavailable"
	var se *service.Error
	if errors.As(err, &se) && kind != service.KindUnavailable {
		msg = se.Message
	}
	if kind == service.KindUnavailable {
		log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return c.JSON(statusFor(kind), echo.Map{"error": msg})
}

func requestContext(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), d)
}

// mustSession returns the resolved caller. Routes using it sit behind
// middleware.Authenticate, so a missing session is a wiring bug reported as 401.
func mustSession(c echo.Context) (service.SessionContext, error) {
	sc, ok := middleware.CurrentSession(c)
	if !ok {
		return service.SessionContext{}, service.ErrUnauthenticated
	}
	return sc, nil
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
}

// Health answers load balancer probes.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
