package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sorting-hall/internal/handler"
	"github.com/iliyamo/sorting-hall/internal/middleware"
	"github.com/iliyamo/sorting-hall/internal/utils"
)

// RegisterRead registers the display endpoints for any authenticated
// role.  Snapshot endpoints go through cache; the event stream does not.
func RegisterRead(e *echo.Echo, h *handler.ReadHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleOperator, utils.RoleTable),
	)
	g.GET("/hall", h.Hall, cache)
	g.GET("/tables", h.Tables, cache)
	g.GET("/status", h.Status, cache)
	g.GET("/events", h.Events)
}
