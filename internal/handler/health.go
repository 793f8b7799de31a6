package handler

import (
    "context"
    "net/http"
    "sort"
    "time"

    "github.com/labstack/echo/v4"
)

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

// HealthHandler serves liveness and readiness.  Optional dependencies
// (Redis, the broker) are reported but never fail readiness.
type HealthHandler struct {
    Required map[string]Check
    Optional map[string]Check
}

// Health is the liveness probe: the process is up.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

// Ready runs every check with a short timeout.
func (h *HealthHandler) Ready(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
    defer cancel()

    status := http.StatusOK
    report := echo.Map{}
    for _, name := range sortedNames(h.Required) {
        if err := h.Required[name](ctx); err != nil {
            report[name] = err.Error()
            status = http.StatusServiceUnavailable
            continue
        }
        report[name] = "ok"
    }
    for _, name := range sortedNames(h.Optional) {
        if err := h.Optional[name](ctx); err != nil {
            report[name] = "degraded: " + err.Error()
            continue
        }
        report[name] = "ok"
    }
    return c.JSON(status, report)
}

func sortedNames(m map[string]Check) []string {
    names := make([]string, 0, len(m))
    for k := range m {
        names = append(names, k)
    }
    sort.Strings(names)
    return names
}
