// Package router registers the HTTP routes of the hall API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/sorting-hall/internal/handler"
	"github.com/iliyamo/sorting-hall/internal/middleware"
	"github.com/iliyamo/sorting-hall/internal/utils"
)

// RegisterRoutes registers the unauthenticated health and metrics
// endpoints.  A nil gatherer serves the default registry.
func RegisterRoutes(e *echo.Echo, gatherer prometheus.Gatherer) {
	e.GET("/healthz", handler.Health)
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// RegisterAuth registers operator login and kiosk token issuance.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	e.POST("/v1/auth/login", a.Login, limit)
	e.POST("/v1/tables/:id/token", a.KioskToken,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleOperator),
	)
}

// RegisterFleet registers the fleet callback under both paths the
// controller may be configured with.  It is neither authenticated by JWT
// nor rate limited; the handler checks the shared callback token.
func RegisterFleet(e *echo.Echo, f *handler.FleetHandler) {
	e.POST("/agilox/callback", f.Callback)
	e.POST("/v1/fleet/callback", f.Callback)
}
