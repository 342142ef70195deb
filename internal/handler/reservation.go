package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/labreserve/lab-reservation/internal/service"
)

// ReservationHandler exposes the booking engine.
type ReservationHandler struct {
	engine  *service.BookingEngine
	timeout time.Duration
	log     *zap.Logger
}

func NewReservationHandler(engine *service.BookingEngine, timeout time.Duration, log *zap.Logger) *ReservationHandler {
	return &ReservationHandler{engine: engine, timeout: timeout, log: log}
}

type createReservationReq struct {
	LaboratoryID string `json:"laboratoryId"`
	TimeSlotID   string `json:"timeSlotId"`
	Date         string `json:"date"`
	ProfessorID  string `json:"professorId"`
}

type updateStatusReq struct {
	Status string `json:"status"`
}

// Create handles POST /reservations.
func (h *ReservationHandler) Create(c echo.Context) error {
	sc, err := mustSession(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	res, err := h.engine.CreateReservation(ctx, sc, service.CreateReservationInput{
		LaboratoryID: req.LaboratoryID,
		TimeSlotID:   req.TimeSlotID,
		Date:         req.Date,
		ProfessorID:  req.ProfessorID,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// List handles GET /reservations. Optional query filters: laboratoryId,
// timeSlotId, date, status.
func (h *ReservationHandler) List(c echo.Context) error {
	sc, err := mustSession(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	out, err := h.engine.ListReservations(ctx, sc, service.ReservationQuery{
		LaboratoryID: c.QueryParam("laboratoryId"),
		TimeSlotID:   c.QueryParam("timeSlotId"),
		Date:         c.QueryParam("date"),
		Status:       c.QueryParam("status"),
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	sc, err := mustSession(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	res, err := h.engine.GetReservation(ctx, sc, c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// UpdateStatus handles PUT /reservations/:id.
func (h *ReservationHandler) UpdateStatus(c echo.Context) error {
	sc, err := mustSession(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	var req updateStatusReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	res, err := h.engine.UpdateStatus(ctx, sc, c.Param("id"), req.Status)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Delete handles DELETE /reservations/:id.
func (h *ReservationHandler) Delete(c echo.Context) error {
	sc, err := mustSession(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	if err := h.engine.DeleteReservation(ctx, sc, c.Param("id")); err != nil {
		return writeError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
