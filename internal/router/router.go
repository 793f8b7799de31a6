package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/desk-booking/internal/config"
	"github.com/iliyamo/desk-booking/internal/handler"
	"github.com/iliyamo/desk-booking/internal/logger"
	"github.com/iliyamo/desk-booking/internal/metrics"
	"github.com/iliyamo/desk-booking/internal/middleware"
	"github.com/iliyamo/desk-booking/internal/model"
)

// Deps is everything the routes need.  Redis may be nil; rate limiting
// and the layout cache are then skipped.
type Deps struct {
	Cfg     config.Config
	Log     *logger.Logger
	Metrics *metrics.Metrics
	Redis   *redis.Client
	Health  *handler.HealthHandler
	Auth    *handler.AuthHandler
	Booking *handler.BookingHandler
	Admin   *handler.AdminHandler
	Cache   *middleware.LayoutCache
	Limit   config.RateLimitConfig
	Confirm config.RateLimitConfig
}

// RegisterGlobal installs the middleware every request passes through.
func RegisterGlobal(e *echo.Echo, d Deps) {
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: d.Cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}))
	e.Use(middleware.RequestLogger(d.Log, d.Metrics))
}

// RegisterRoutes registers routes that do not require authentication:
// probes and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	if d.Health != nil {
		e.GET("/readyz", d.Health.Ready)
	}
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}
}

// RegisterAuth registers the token endpoints.  Register, login and refresh
// live under /v1/auth without a session; logout and /v1/me need one.
func RegisterAuth(e *echo.Echo, d Deps) {
	g := e.Group("/v1/auth", middleware.RateLimit(d.Limit, d.Redis, d.Log))
	g.POST("/register", d.Auth.Register)
	g.POST("/login", d.Auth.Login)
	g.POST("/refresh", d.Auth.Refresh)

	auth := e.Group("/v1", middleware.JWTAuth(d.Cfg.JWTSecret))
	auth.POST("/auth/logout", d.Auth.Logout)
	auth.GET("/me", d.Auth.Me)
}

// RegisterBooking registers the member endpoints.  Every route needs a
// valid access token; confirm carries a stricter per-user limit.
func RegisterBooking(e *echo.Echo, d Deps) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(d.Cfg.JWTSecret),
		middleware.RequireRole(model.RoleMember, model.RoleAdmin),
		middleware.RateLimit(d.Limit, d.Redis, d.Log),
	)
	g.GET("/units/:unit/seats", d.Booking.SeatViews)
	g.GET("/units/:unit/layout", d.Booking.Layout, d.Cache.Middleware())

	g.POST("/booking/selection", d.Booking.SelectSeat)
	g.DELETE("/booking/selection", d.Booking.ClearSelection)
	g.GET("/booking/attempt", d.Booking.Attempt)
	g.POST("/booking/confirm", d.Booking.Confirm, middleware.RateLimit(d.Confirm, d.Redis, d.Log))
	g.GET("/my-seat", d.Booking.MySeat)
}

// RegisterAdmin registers table provisioning under /v1/admin.
func RegisterAdmin(e *echo.Echo, d Deps) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(d.Cfg.JWTSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.POST("/units/:unit/tables", d.Admin.CreateTable)
	g.DELETE("/tables/:id", d.Admin.DeleteTable)
}

// Register wires every group onto e.
func Register(e *echo.Echo, d Deps) {
	RegisterGlobal(e, d)
	RegisterRoutes(e, d)
	RegisterAuth(e, d)
	RegisterBooking(e, d)
	RegisterAdmin(e, d)
}
