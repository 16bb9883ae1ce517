package integrity

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vitalguard/careboard/internal/domain/patient"
	"github.com/vitalguard/careboard/internal/platform/auth"
	"github.com/vitalguard/careboard/pkg/pagination"
)

type Handler struct {
	verifier *Verifier
}

func NewHandler(verifier *Verifier) *Handler {
	return &Handler{verifier: verifier}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/integrity", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor))
	g.POST("/verify", h.Verify)
	g.GET("/log", h.Log)
}

type verifyRequest struct {
	PatientID      string `json:"patientId"`
	SimulateTamper bool   `json:"simulateTamper"`
}

func (h *Handler) Verify(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id, err := uuid.Parse(req.PatientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patientId")
	}
	proof, err := h.verifier.Verify(c.Request().Context(), id, req.SimulateTamper)
	switch {
	case errors.Is(err, patient.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, patient.ErrNotVisible):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, proof)
}

func (h *Handler) Log(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total := h.verifier.Log(pg.Limit, pg.Offset)
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
