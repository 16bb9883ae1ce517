package teamchat

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vitalguard/careboard/internal/platform/auth"
	"github.com/vitalguard/careboard/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/team/messages", auth.RequireRole(auth.StaffRoles...))
	g.GET("", h.List)
	g.POST("", h.Post)
}

type postRequest struct {
	Text string `json:"text"`
}

func (h *Handler) Post(c echo.Context) error {
	var req postRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.Post(c.Request().Context(), req.Text)
	if err != nil {
		if errors.Is(err, ErrStaffOnly) {
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
