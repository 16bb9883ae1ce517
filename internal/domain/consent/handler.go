package consent

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vitalguard/careboard/internal/domain/audit"
	"github.com/vitalguard/careboard/internal/platform/auth"
	"github.com/vitalguard/careboard/pkg/pagination"
)

type Handler struct {
	ledger *Ledger
}

func NewHandler(ledger *Ledger) *Handler {
	return &Handler{ledger: ledger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	all := auth.RequireRole(append([]string{auth.RolePatient}, auth.StaffRoles...)...)

	g := api.Group("/consents")
	g.GET("", h.List, all)
	g.POST("", h.Grant, auth.RequireRole(auth.RolePatient))
	g.GET("/eligibility", h.Eligibility, auth.RequireRole(auth.StaffRoles...))
	g.GET("/:id", h.Get, all)
	g.POST("/:id/revoke", h.Revoke, all)
}

func (h *Handler) Grant(c echo.Context) error {
	var in GrantInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	g, err := h.ledger.Grant(ctx, audit.ActorFromContext(ctx), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, g)
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.ledger.ListFor(ctx, audit.ActorFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	pg := pagination.FromContext(c)
	start, end := pg.Window(len(items))
	return c.JSON(http.StatusOK, pagination.NewResponse(items[start:end], len(items), pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	g, err := h.ledger.Get(ctx, id)
	if err != nil {
		return httpError(err)
	}
	actor := audit.ActorFromContext(ctx)
	if actor.Role == auth.RolePatient && g.PatientUID != actor.UID {
		return echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) Revoke(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	g, err := h.ledger.Revoke(ctx, audit.ActorFromContext(ctx), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) Eligibility(c echo.Context) error {
	patient := c.QueryParam("patient")
	grantee := c.QueryParam("grantee")
	if patient == "" || grantee == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient and grantee are required")
	}
	ctx := c.Request().Context()
	if _, err := h.ledger.SweepExpirations(ctx); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	ok, err := h.ledger.IsAccessEligible(ctx, patient, grantee)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patient":  patient,
		"grantee":  grantee,
		"eligible": ok,
	})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrPatientOnly), errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotActive):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
