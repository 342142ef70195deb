package router

import (
	"github.com/labstack/echo/v4"

	"github.com/labreserve/lab-reservation/internal/handler"
	"github.com/labreserve/lab-reservation/internal/middleware"
	"github.com/labreserve/lab-reservation/internal/model"
)

const roleAdmin = model.RoleAdmin

func registerReservations(e *echo.Echo, d Deps, mw chain) {
	h := handler.NewReservationHandler(d.Engine, d.Cfg.RequestTimeout, d.Log)

	g := e.Group("/reservations", mw.authed, mw.limit, mw.unlocked)
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.UpdateStatus)
	g.DELETE("/:id", h.Delete, mw.admin)
}

// registerCatalog mounts laboratories and time slots. Reads go through the
// response cache; admin mutations flush it.
func registerCatalog(e *echo.Echo, d Deps, mw chain) {
	h := handler.NewCatalogHandler(d.Catalog, d.Cfg.RequestTimeout, d.Log)
	cache := middleware.NewCatalogCache(d.Cfg.Cache, d.Redis, d.Log)
	read, flush := cache.Read(), cache.Invalidate()

	labs := e.Group("/laboratories", mw.authed, mw.limit, mw.unlocked)
	labs.GET("", h.ListLaboratories, read)
	labs.GET("/:id", h.GetLaboratory, read)
	labs.POST("", h.CreateLaboratory, mw.admin, flush)
	labs.PUT("/:id", h.UpdateLaboratory, mw.admin, flush)
	labs.DELETE("/:id", h.DeleteLaboratory, mw.admin, flush)

	slots := e.Group("/time-slots", mw.authed, mw.limit, mw.unlocked)
	slots.GET("", h.ListTimeSlots, read)
	slots.GET("/:id", h.GetTimeSlot, read)
	slots.POST("", h.CreateTimeSlot, mw.admin, flush)
	slots.PUT("/:id", h.UpdateTimeSlot, mw.admin, flush)
	slots.DELETE("/:id", h.DeleteTimeSlot, mw.admin, flush)
}

// registerProfessors mounts professor administration. GET and PUT of a
// single professor are also open to that professor; the service checks it.
func registerProfessors(e *echo.Echo, d Deps, mw chain) {
	h := handler.NewProfessorHandler(d.Accounts, d.Cfg.RequestTimeout, d.Log)

	g := e.Group("/professors", mw.authed, mw.limit, mw.unlocked)
	g.GET("", h.List, mw.admin)
	g.POST("", h.Create, mw.admin)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete, mw.admin)
}
