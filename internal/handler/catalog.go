package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/labreserve/lab-reservation/internal/service"
)

// CatalogHandler serves laboratories and time slots.
type CatalogHandler struct {
	catalog *service.CatalogService
	timeout time.Duration
	log     *zap.Logger
}

func NewCatalogHandler(catalog *service.CatalogService, timeout time.Duration, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, timeout: timeout, log: log}
}

type laboratoryReq struct {
	Name string `json:"name"`
}

type timeSlotReq struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (h *CatalogHandler) ListLaboratories(c echo.Context) error {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	out, err := h.catalog.ListLaboratories(ctx)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) GetLaboratory(c echo.Context) error {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	l, err := h.catalog.GetLaboratory(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *CatalogHandler) CreateLaboratory(c echo.Context) error {
	var req laboratoryReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	l, err := h.catalog.CreateLaboratory(ctx, req.Name)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *CatalogHandler) UpdateLaboratory(c echo.Context) error {
	var req laboratoryReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	l, err := h.catalog.UpdateLaboratory(ctx, c.Param("id"), req.Name)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *CatalogHandler) DeleteLaboratory(c echo.Context) error {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	if err := h.catalog.DeleteLaboratory(ctx, c.Param("id")); err != nil {
		return writeError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CatalogHandler) ListTimeSlots(c echo.Context) error {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	out, err := h.catalog.ListTimeSlots(ctx)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) GetTimeSlot(c echo.Context) error {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	ts, err := h.catalog.GetTimeSlot(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, ts)
}

func (h *CatalogHandler) CreateTimeSlot(c echo.Context) error {
	var req timeSlotReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	ts, err := h.catalog.CreateTimeSlot(ctx, req.Start, req.End)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, ts)
}

func (h *CatalogHandler) UpdateTimeSlot(c echo.Context) error {
	var req timeSlotReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	ts, err := h.catalog.UpdateTimeSlot(ctx, c.Param("id"), req.Start, req.End)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, ts)
}

func (h *CatalogHandler) DeleteTimeSlot(c echo.Context) error {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	if err := h.catalog.DeleteTimeSlot(ctx, c.Param("id")); err != nil {
		return writeError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
