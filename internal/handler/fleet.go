package handler

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sorting-hall/internal/fleet"
	"github.com/iliyamo/sorting-hall/internal/logger"
	"github.com/iliyamo/sorting-hall/internal/model"
)

// CallbackTokenHeader carries the optional shared secret of the fleet.
const CallbackTokenHeader = "X-Callback-Token"

// FleetHandler receives delivery callbacks from the fleet controller.
type FleetHandler struct {
	Events FleetEvents
	Token  string
	Log    logger.Logger
}

func NewFleetHandler(events FleetEvents, token string, log logger.Logger) *FleetHandler {
	return &FleetHandler{Events: events, Token: token, Log: orNop(log)}
}

// callbackReq is the callback body.  The order id arrives as a number or
// a numeric string.
type callbackReq struct {
	OrderID json.RawMessage `json:"orderid"`
	Action  string          `json:"action"`
	Status  string          `json:"status"`
	Row     string          `json:"row"`
	Table   string          `json:"table"`
}

// Callback applies a fleet event.  The controller does not retry, so the
// answer is always 200 once the caller is authenticated; problems are
// logged only.
func (h *FleetHandler) Callback(c echo.Context) error {
	if h.Token != "" {
		got := c.Request().Header.Get(CallbackTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.Token)) != 1 {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid callback token"})
		}
	}
	ok := echo.Map{"status": "ok"}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 64<<10))
	if err != nil {
		h.Log.Warnf("read fleet callback: %v", err)
		return c.JSON(http.StatusOK, ok)
	}
	var req callbackReq
	if err := json.Unmarshal(body, &req); err != nil {
		h.Log.Warnf("undecodable fleet callback %q: %v", body, err)
		return c.JSON(http.StatusOK, ok)
	}
	orderID, valid := fleet.ParseID(req.OrderID)
	if !valid {
		h.Log.Warnf("fleet callback without usable order id: %q", body)
		return c.JSON(http.StatusOK, ok)
	}

	out, err := h.Events.Handle(c.Request().Context(), model.FleetEvent{
		OrderID: orderID,
		Action:  req.Action,
		Status:  req.Status,
		Row:     req.Row,
		Table:   req.Table,
	})
	if err != nil {
		h.Log.Errorf("apply fleet callback for order %d: %v", orderID, err)
		return c.JSON(http.StatusOK, ok)
	}
	h.Log.Debugw("fleet callback", map[string]any{
		"order_id": orderID,
		"action":   req.Action,
		"status":   req.Status,
		"matched":  out.Matched,
		"effect":   out.Effect,
	})
	return c.JSON(http.StatusOK, ok)
}
