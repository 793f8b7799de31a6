package middleware

import (
    "fmt"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/desk-booking/internal/logger"
    "github.com/iliyamo/desk-booking/internal/metrics"
)

// CtxErrorDetail holds the text of an error whose message was masked in
// the response.  RequestLogger writes it to the log.
const CtxErrorDetail = "error_detail"

// RequestLogger logs every request and records it in m.  Routes are
// labelled by their pattern (c.Path()) to keep metric cardinality bounded.
func RequestLogger(log *logger.Logger, m *metrics.Metrics) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                c.Error(err)
            }
            status := c.Response().Status
            route := c.Path()
            if route == "" {
                route = "unmatched"
            }
            elapsed := time.Since(start)
            log.LogAPI(c.Request().Method, c.Request().URL.Path, status, elapsed)
            if detail, ok := c.Get(CtxErrorDetail).(string); ok && detail != "" {
                log.Error("API", fmt.Sprintf("%s %s - %d: %s", c.Request().Method, c.Request().URL.Path, status, detail))
            }
            m.ObserveRequest(c.Request().Method, route, status, elapsed)
            return nil
        }
    }
}
