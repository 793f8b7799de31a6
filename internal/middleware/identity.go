package middleware

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/desk-booking/internal/booking"
)

// Caller returns the identity JWTAuth stored in the context.  ok is false
// on unauthenticated requests.
func Caller(c echo.Context) (booking.Identity, bool) {
    id, _ := c.Get(CtxUserID).(string)
    if id == "" {
        return booking.Identity{}, false
    }
    name, _ := c.Get(CtxUserName).(string)
    return booking.Identity{ID: id, DisplayName: name}, true
}

// callerKey is the rate limit key component for the caller, "guest" when
// unauthenticated.
func callerKey(c echo.Context) string {
    if who, ok := Caller(c); ok {
        return who.ID
    }
    return "guest"
}
