package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/desk-booking/internal/booking"
	"github.com/iliyamo/desk-booking/internal/metrics"
)

// BookingHandler serves the member facing booking endpoints.
type BookingHandler struct {
	Desk    *booking.Desk
	Metrics *metrics.Metrics
}

func NewBookingHandler(desk *booking.Desk, m *metrics.Metrics) *BookingHandler {
	if desk == nil {
		panic("nil desk passed to NewBookingHandler")
	}
	return &BookingHandler{Desk: desk, Metrics: m}
}

type selectReq struct {
	SeatID string `json:"seat_id"`
}

type confirmReq struct {
	Token string `json:"token"`
}

type warningPart struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	SeatIDs []string `json:"seat_ids"`
}

type confirmResp struct {
	Status   booking.AttemptStatus `json:"status"`
	Seat     booking.SeatView      `json:"seat"`
	Released []string              `json:"released,omitempty"`
	Warning  *warningPart          `json:"warning,omitempty"`
}

// SeatViews handles GET /v1/units/:unit/seats.  Occupancy is derived per
// request and never cached.
func (h *BookingHandler) SeatViews(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	unit := strings.TrimSpace(c.Param("unit"))
	views, err := h.Desk.SeatViews(c.Request().Context(), who, unit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"unit":   unit,
		"now":    h.Desk.Now().UTC(),
		"tables": booking.GroupByTable(views),
	})
}

// Layout handles GET /v1/units/:unit/layout.
func (h *BookingHandler) Layout(c echo.Context) error {
	unit := strings.TrimSpace(c.Param("unit"))
	tables, err := h.Desk.Layout(c.Request().Context(), unit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"unit": unit, "tables": tables})
}

// SelectSeat handles POST /v1/booking/selection and returns the
// challenge the client must complete.
func (h *BookingHandler) SelectSeat(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var req selectReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.SeatID) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_id required"})
	}
	handle, err := h.Desk.SelectSeat(c.Request().Context(), who, strings.TrimSpace(req.SeatID))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"challenge": handle,
		"attempt":   h.Desk.Attempt(who),
	})
}

// ClearSelection handles DELETE /v1/booking/selection.
func (h *BookingHandler) ClearSelection(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.Desk.ClearSelection(who); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Attempt handles GET /v1/booking/attempt.
func (h *BookingHandler) Attempt(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	return c.JSON(http.StatusOK, h.Desk.Attempt(who))
}

// Confirm handles POST /v1/booking/confirm.  A committed booking with
// seats left held answers 200 with a PARTIAL_RELEASE warning.
func (h *BookingHandler) Confirm(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var req confirmReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	start := time.Now()
	out, err := h.Desk.BookSelectedSeat(c.Request().Context(), who, strings.TrimSpace(req.Token))
	if err != nil {
		_, code := errorStatus(err)
		h.Metrics.ObserveBooking(strings.ToLower(code), time.Since(start), false)
		return writeError(c, err)
	}
	h.Metrics.ObserveBooking("committed", time.Since(start), out.Warning != nil)

	resp := confirmResp{
		Status: out.Status,
		Seat:   booking.ProjectOne(out.Snapshot.Claimed, who.ID, "", h.Desk.Now()),
	}
	for _, r := range out.Snapshot.Released {
		resp.Released = append(resp.Released, r.SeatID)
	}
	if out.Warning != nil {
		resp.Warning = &warningPart{
			Code:    kindCode(booking.KindPartialRelease),
			Message: "booked, but some previous seats could not be released yet",
			SeatIDs: out.Snapshot.FailedReleases,
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// MySeat handles GET /v1/my-seat.
func (h *BookingHandler) MySeat(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	seat, err := h.Desk.ActiveSeat(c.Request().Context(), who)
	if err != nil {
		return writeError(c, err)
	}
	if seat == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no active seat"})
	}
	return c.JSON(http.StatusOK, seat)
}
