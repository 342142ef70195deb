package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/labreserve/lab-reservation/internal/service"
)

// ProfessorHandler serves professor administration.
type ProfessorHandler struct {
	accounts *service.AccountService
	timeout  time.Duration
	log      *zap.Logger
}

func NewProfessorHandler(accounts *service.AccountService, timeout time.Duration, log *zap.Logger) *ProfessorHandler {
	return &ProfessorHandler{accounts: accounts, timeout: timeout, log: log}
}

type createProfessorReq struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *ProfessorHandler) List(c echo.Context) error {
	sc, err := mustSession(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	out, err := h.accounts.ListProfessors(ctx, sc)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ProfessorHandler) Get(c echo.Context) error {
	sc, err := mustSession(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	u, err := h.accounts.GetProfessor(ctx, sc, c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *ProfessorHandler) Create(c echo.Context) error {
	sc, err := mustSession(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	var req createProfessorReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	u, err := h.accounts.CreateProfessor(ctx, sc, req.Name, req.Email)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, u)
}

// Update applies a partial edit; absent JSON fields stay untouched.
func (h *ProfessorHandler) Update(c echo.Context) error {
	sc, err := mustSession(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	var req service.ProfessorUpdate
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	u, err := h.accounts.UpdateProfessor(ctx, sc, c.Param("id"), req)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *ProfessorHandler) Delete(c echo.Context) error {
	sc, err := mustSession(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()
	if err := h.accounts.DeleteProfessor(ctx, sc, c.Param("id")); err != nil {
		return writeError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
