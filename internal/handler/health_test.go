package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func ok(context.Context) error { return nil }

func TestReady(t *testing.T) {
	down := func(context.Context) error { return errors.New("connection refused") }

	e := echo.New()
	e.GET("/healthz", Health)
	e.GET("/ready", (&HealthHandler{
		Required: map[string]Check{"mysql": ok},
		Optional: map[string]Check{"redis": down},
	}).Ready)
	e.GET("/down", (&HealthHandler{Required: map[string]Check{"mysql": down}}).Ready)

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/healthz", "", "").Code)

	rec := do(e, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["mysql"])
	assert.Contains(t, body["redis"], "degraded")

	rec = do(e, http.MethodGet, "/down", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
