package session

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vitalguard/careboard/internal/domain/access"
	"github.com/vitalguard/careboard/internal/platform/auth"
)

type Handler struct {
	nav *Navigator
}

func NewHandler(nav *Navigator) *Handler {
	return &Handler{nav: nav}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	all := append([]string{auth.RolePatient}, auth.StaffRoles...)
	g := api.Group("/session", auth.RequireRole(all...))
	g.GET("", h.Current)
	g.POST("/navigate", h.Navigate)
	g.POST("/select", h.Select)
	g.DELETE("", h.End)
}

type moveResponse struct {
	State
	Allowed bool `json:"allowed"`
}

func (h *Handler) Current(c echo.Context) error {
	s, err := h.nav.Current(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) Navigate(c echo.Context) error {
	var req struct {
		Page access.Page `json:"page"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s, ok, err := h.nav.Navigate(c.Request().Context(), req.Page)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, moveResponse{State: s, Allowed: ok})
}

func (h *Handler) Select(c echo.Context) error {
	var req struct {
		PatientID string `json:"patientId"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s, ok, err := h.nav.Select(c.Request().Context(), req.PatientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, moveResponse{State: s, Allowed: ok})
}

func (h *Handler) End(c echo.Context) error {
	if err := h.nav.End(c.Request().Context()); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func httpError(err error) error {
	if errors.Is(err, ErrNoSession) {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
