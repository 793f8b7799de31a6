package middleware // middleware provides shared request processing for handlers

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/desk-booking/internal/utils"
)

// Context keys set by JWTAuth.
const (
    CtxUserID   = "user_id"
    CtxUserName = "user_name"
    CtxRole     = "role"
)

// JWTAuth validates a Bearer access token and stores its subject, display
// name and role in the request context.  It wraps every /v1 route except
// the auth endpoints.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get(echo.HeaderAuthorization)
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            claims, err := utils.ParseAccessToken(secret, strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")))
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            c.Set(CtxUserID, claims.Subject)
            c.Set(CtxUserName, claims.Name)
            c.Set(CtxRole, claims.Role)
            return next(c)
        }
    }
}
