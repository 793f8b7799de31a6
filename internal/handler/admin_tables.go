package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/desk-booking/internal/booking"
)

// LayoutPurger drops cached layouts after tables change.
type LayoutPurger interface {
	Purge(ctx context.Context, unit string)
	PurgeAll(ctx context.Context)
}

// AdminHandler provisions and removes tables.  Routes are guarded by
// RequireRole(ADMIN).
type AdminHandler struct {
	Desk  *booking.Desk
	Cache LayoutPurger
}

func NewAdminHandler(desk *booking.Desk, cache LayoutPurger) *AdminHandler {
	if desk == nil {
		panic("nil desk passed to NewAdminHandler")
	}
	return &AdminHandler{Desk: desk, Cache: cache}
}

type createTableReq struct {
	Rows    int `json:"rows"`
	Columns int `json:"columns"`
}

// CreateTable handles POST /v1/admin/units/:unit/tables.
func (h *AdminHandler) CreateTable(c echo.Context) error {
	unit := strings.TrimSpace(c.Param("unit"))
	var req createTableReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	table, err := h.Desk.ProvisionTable(c.Request().Context(), unit, req.Rows, req.Columns)
	if err != nil {
		return writeError(c, err)
	}
	if h.Cache != nil {
		h.Cache.Purge(c.Request().Context(), unit)
	}
	return c.JSON(http.StatusCreated, table)
}

// DeleteTable handles DELETE /v1/admin/tables/:id.
func (h *AdminHandler) DeleteTable(c echo.Context) error {
	if err := h.Desk.RemoveTable(c.Request().Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		return writeError(c, err)
	}
	if h.Cache != nil {
		h.Cache.PurgeAll(c.Request().Context())
	}
	return c.NoContent(http.StatusNoContent)
}
