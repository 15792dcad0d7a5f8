package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sorting-hall/internal/config"
	"github.com/iliyamo/sorting-hall/internal/logger"
	"github.com/iliyamo/sorting-hall/internal/utils"
)

// AuthHandler issues access tokens.  The operator logs in with the
// configured password; kiosk tokens are issued by the operator.
type AuthHandler struct {
	Cfg   config.Config
	Views Views
	Log   logger.Logger
}

func NewAuthHandler(cfg config.Config, views Views, log logger.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Views: views, Log: orNop(log)}
}

type loginReq struct {
	Password string `json:"password"`
}

type tokenResp struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
	Role    string    `json:"role"`
	TableID int64     `json:"table_id,omitempty"`
}

// Login verifies the operator password and returns an operator token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password required"})
	}
	if !utils.VerifyPassword(h.Cfg.OperatorPasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	return h.issue(c, utils.OperatorClaims())
}

// KioskToken issues a token bound to the table in the path.
func (h *AuthHandler) KioskToken(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), readTimeout)
	defer cancel()
	if _, err := h.Views.Table(ctx, id); err != nil {
		return respondError(c, h.Log, err)
	}
	return h.issue(c, utils.TableClaims(id))
}

func (h *AuthHandler) issue(c echo.Context, cl utils.Claims) error {
	tok, err := utils.NewAccessToken(h.Cfg.JWTSecret, cl, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusOK, tokenResp{Token: tok.Token, Expires: tok.Exp, Role: cl.Role, TableID: cl.TableID})
}
