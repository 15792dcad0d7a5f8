package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sorting-hall/internal/handler"
	"github.com/iliyamo/sorting-hall/internal/middleware"
	"github.com/iliyamo/sorting-hall/internal/utils"
)

// RegisterKiosk registers the table endpoints.  A kiosk token may only act
// on its own table; the operator may act on any.
func RegisterKiosk(e *echo.Echo, h *handler.TableHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/tables/:id",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleOperator, utils.RoleTable),
		middleware.RequireTable("id"),
		limit,
	)
	g.GET("", h.Get)
	g.POST("/calls", h.RequestCall)
	g.DELETE("/calls", h.CancelCall)
	g.POST("/calls/confirm", h.ConfirmDelivered)
}
