package patient

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vitalguard/careboard/internal/domain/vitals"
	"github.com/vitalguard/careboard/internal/platform/auth"
	"github.com/vitalguard/careboard/internal/platform/export"
	"github.com/vitalguard/careboard/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes puts role checks on each route rather than on a group;
// unknown paths under /api/v1 must stay 404 for every role.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := auth.RequireRole(append([]string{auth.RolePatient}, auth.StaffRoles...)...)
	staff := auth.RequireRole(auth.StaffRoles...)

	g := api.Group("/patients")
	g.GET("", h.ListActive, read)
	g.GET("/discharged", h.ListDischarged, staff)
	g.POST("", h.Create, staff)
	g.GET("/:id", h.Chart, read)
	g.PUT("/:id", h.Update, staff)
	g.GET("/:id/view", h.View, read)
	g.GET("/:id/vitals", h.ListVitals, read)
	g.POST("/:id/vitals", h.RecordVitals, staff)
	g.GET("/:id/medications", h.ListMedications, read)
	g.POST("/:id/medications", h.AddMedication, staff)
	g.GET("/:id/instructions", h.ListInstructions, read)
	g.POST("/:id/instructions", h.AddInstruction, staff)
	g.GET("/:id/tasks", h.ListTasks, read)
	g.POST("/:id/tasks", h.AddTask, staff)
	g.GET("/:id/messages", h.ListMessages, read)
	g.POST("/:id/messages", h.PostMessage, read)
	g.GET("/:id/reports", h.ListReports, read)
	g.POST("/:id/reports", h.AddReport, staff)
	g.GET("/:id/summary", h.LatestSummary, read)
	g.POST("/:id/summary", h.GenerateSummary, staff)
	g.POST("/:id/discharge", h.Discharge, staff)
	g.GET("/:id/discharge-report", h.DischargeReport, read)
	g.GET("/:id/discharge-report/export", h.ExportDischargeReport, read)

	api.GET("/dashboard", h.Dashboard, staff)
	api.DELETE("/medications/:id", h.DeleteMedication, staff)
	api.DELETE("/instructions/:id", h.DeleteInstruction, staff)
	api.DELETE("/reports/:id", h.DeleteReport, staff)
	api.POST("/tasks/:id/complete", h.CompleteTask, staff)
}

func (h *Handler) ListActive(c echo.Context) error {
	items, err := h.svc.ListActive(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return paged(c, items)
}

func (h *Handler) ListDischarged(c echo.Context) error {
	items, err := h.svc.ListDischarged(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return paged(c, items)
}

func (h *Handler) Dashboard(c echo.Context) error {
	d, err := h.svc.Dashboard(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Chart(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	chart, err := h.svc.Chart(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chart)
}

func (h *Handler) View(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.View(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) RecordVitals(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in vitals.Sample
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.RecordVitals(c.Request().Context(), id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) ListVitals(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListVitals(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AddMedication(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in MedicationInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.AddMedication(c.Request().Context(), id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListMedications(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	activeOnly, _ := strconv.ParseBool(c.QueryParam("active"))
	items, err := h.svc.ListMedications(c.Request().Context(), id, activeOnly)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DeleteMedication(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteMedication(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AddInstruction(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in InstructionInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	inst, err := h.svc.AddInstruction(c.Request().Context(), id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, inst)
}

func (h *Handler) ListInstructions(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListInstructions(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DeleteInstruction(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteInstruction(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AddTask(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in TaskInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.AddTask(c.Request().Context(), id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) ListTasks(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListTasks(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CompleteTask(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in struct {
		CompletedBy string `json:"completed_by"`
	}
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.CompleteTask(c.Request().Context(), id, in.CompletedBy)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) PostMessage(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in MessageInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.PostMessage(c.Request().Context(), id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListMessages(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListMessages(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AddReport(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in ReportInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.AddReport(c.Request().Context(), id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) ListReports(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListReports(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DeleteReport(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteReport(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GenerateSummary(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	s, err := h.svc.GenerateSummary(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) LatestSummary(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	s, err := h.svc.LatestSummary(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if s == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no summary has been generated")
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) Discharge(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	r, err := h.svc.Discharge(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) DischargeReport(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	r, err := h.svc.DischargeReport(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ExportDischargeReport(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	b, r, err := h.svc.ExportDischargeXLSX(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	name := fmt.Sprintf("discharge-%s-%s.xlsx", r.PatientID, r.DischargeTime.UTC().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Blob(http.StatusOK, export.ContentTypeXLSX, b)
}

func paged(c echo.Context, items []*Patient) error {
	pg := pagination.FromContext(c)
	start, end := pg.Window(len(items))
	return c.JSON(http.StatusOK, pagination.NewResponse(items[start:end], len(items), pg.Limit, pg.Offset))
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrItemNotFound), errors.Is(err, ErrNoDischargeReport):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotVisible):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrDischarged), errors.Is(err, ErrTaskAlreadyCompleted), errors.Is(err, ErrNotMonitored):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
