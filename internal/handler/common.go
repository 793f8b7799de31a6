package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/desk-booking/internal/booking"
	"github.com/iliyamo/desk-booking/internal/middleware"
)

// caller is the identity JWTAuth stored on the request.
func caller(c echo.Context) (booking.Identity, bool) { return middleware.Caller(c) }

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

// errorStatus maps booking failures to an HTTP status and a stable
// upper-case code.
func errorStatus(err error) (int, string) {
	switch kind := booking.KindOf(err); kind {
	case booking.KindChallengeRequired:
		return http.StatusPreconditionRequired, kindCode(kind)
	case booking.KindVerificationFailed:
		return http.StatusForbidden, kindCode(kind)
	case booking.KindSeatNoLongerFree:
		return http.StatusConflict, kindCode(kind)
	case booking.KindClaimFailed:
		return http.StatusBadGateway, kindCode(kind)
	case booking.KindNetworkError:
		return http.StatusServiceUnavailable, kindCode(kind)
	}
	switch {
	case errors.Is(err, booking.ErrAnonymousCaller):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, booking.ErrDuplicateSubmission):
		return http.StatusConflict, "DUPLICATE_SUBMISSION"
	case errors.Is(err, booking.ErrAttemptInFlight):
		return http.StatusConflict, "ATTEMPT_IN_FLIGHT"
	case errors.Is(err, booking.ErrNoSelection):
		return http.StatusConflict, "NO_SELECTION"
	case errors.Is(err, booking.ErrSeatNotFree):
		return http.StatusConflict, "SEAT_NOT_FREE"
	case errors.Is(err, booking.ErrSeatNotFound):
		return http.StatusNotFound, "SEAT_NOT_FOUND"
	case errors.Is(err, booking.ErrTableNotFound):
		return http.StatusNotFound, "TABLE_NOT_FOUND"
	case errors.Is(err, booking.ErrInvalidLayout), errors.Is(err, booking.ErrInvalidFilter):
		return http.StatusBadRequest, "INVALID_REQUEST"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func kindCode(k booking.Kind) string { return strings.ToUpper(string(k)) }

// maskedMessages replace the text of errors that wrap store or transport
// failures.  The original text goes to the request log.
var maskedMessages = map[int]string{
	http.StatusInternalServerError: "internal error",
	http.StatusBadGateway:          "seat could not be claimed, please try again",
	http.StatusServiceUnavailable:  "booking store unavailable, please try again",
}

// writeError renders err as {"error", "code", "seat_ids"}.
func writeError(c echo.Context, err error) error {
	status, code := errorStatus(err)
	body := echo.Map{"error": err.Error(), "code": code}
	if msg, ok := maskedMessages[status]; ok {
		body["error"] = msg
		c.Set(middleware.CtxErrorDetail, err.Error())
	}
	var be *booking.Error
	if errors.As(err, &be) && len(be.SeatIDs) > 0 {
		body["seat_ids"] = be.SeatIDs
	}
	return c.JSON(status, body)
}
