package audit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vitalguard/careboard/internal/platform/auth"
	"github.com/vitalguard/careboard/internal/platform/export"
	"github.com/vitalguard/careboard/pkg/pagination"
)

type Handler struct {
	trail *Trail
}

func NewHandler(trail *Trail) *Handler {
	return &Handler{trail: trail}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := api.Group("/audit", auth.RequireRole(auth.RoleAdmin))
	admin.GET("", h.List)
	admin.GET("/export", h.Export)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	var (
		items []*Entry
		total int
		err   error
	)
	if actor := c.QueryParam("actor"); actor != "" {
		items, total, err = h.trail.ListByActor(ctx, actor, pg.Limit, pg.Offset)
	} else {
		items, total, err = h.trail.List(ctx, pg.Limit, pg.Offset)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Export(c echo.Context) error {
	data, err := h.trail.ExportXLSX(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	name := fmt.Sprintf("audit-log-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, export.ContentTypeXLSX, data)
}
