package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sorting-hall/internal/handler"
	"github.com/iliyamo/sorting-hall/internal/middleware"
	"github.com/iliyamo/sorting-hall/internal/utils"
)

// RegisterOperator registers the operator console endpoints.  All routes
// require the OPERATOR role.
func RegisterOperator(e *echo.Echo, h *handler.OperatorHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleOperator),
		limit,
	)
	g.POST("/rows/:id/pallets", h.AddPallet)
	g.DELETE("/rows/:id/pallets", h.RemovePallet)
	g.PUT("/rows/:id/article", h.SetArticle)
	g.POST("/rows/:id/dispatch", h.Dispatch)
	g.PUT("/settings/strategy", h.SetStrategy)
}
