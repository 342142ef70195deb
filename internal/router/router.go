// Package router assembles the echo instance: global middleware, the
// health and metrics endpoints and every API route group.
package router

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/labreserve/lab-reservation/internal/config"
	"github.com/labreserve/lab-reservation/internal/handler"
	"github.com/labreserve/lab-reservation/internal/middleware"
	"github.com/labreserve/lab-reservation/internal/service"
)

// Deps carries everything the routes need. Redis may be nil; rate
// limiting and the catalog cache are then disabled.
type Deps struct {
	Cfg      config.Config
	Log      *zap.Logger
	Redis    *redis.Client
	Sessions *service.SessionManager
	Accounts *service.AccountService
	Catalog  *service.CatalogService
	Engine   *service.BookingEngine
}

// chain groups the middleware shared by route groups.
type chain struct {
	authed   echo.MiddlewareFunc
	limit    echo.MiddlewareFunc
	unlocked echo.MiddlewareFunc
	admin    echo.MiddlewareFunc
}

// New builds the HTTP server with every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(d.Log))

	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	mw := chain{
		authed:   middleware.Authenticate(d.Sessions, d.Cfg.CookieName, d.Cfg.RequestTimeout, d.Log),
		limit:    middleware.NewTokenBucket(d.Cfg.RateLimit, d.Redis, d.Log),
		unlocked: middleware.RequirePasswordChanged(),
		admin:    middleware.RequireRole(roleAdmin),
	}

	registerAuth(e, d, mw)
	registerUsers(e, d, mw)
	registerReservations(e, d, mw)
	registerCatalog(e, d, mw)
	registerProfessors(e, d, mw)
	return e
}

func registerAuth(e *echo.Echo, d Deps, mw chain) {
	h := handler.NewAuthHandler(d.Cfg, d.Accounts, d.Sessions, d.Log)

	g := e.Group("/auth")
	g.POST("/login", h.Login, mw.limit)
	g.POST("/logout", h.Logout, mw.authed, mw.limit)
	g.POST("/logout-all", h.LogoutAll, mw.authed, mw.limit)
	g.POST("/refresh-token", h.Refresh, mw.authed, mw.limit)
}

// registerUsers mounts the self-service routes. They stay reachable while a
// password change is pending.
func registerUsers(e *echo.Echo, d Deps, mw chain) {
	h := handler.NewUserHandler(d.Cfg, d.Accounts, d.Sessions, d.Log)

	g := e.Group("/users", mw.authed, mw.limit)
	g.GET("/me", h.Me)
	g.POST("/change-password", h.ChangePassword)
	g.GET("/sessions", h.ListSessions)
	g.DELETE("/sessions", h.RevokeSession)
}
