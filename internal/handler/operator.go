package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sorting-hall/internal/logger"
	"github.com/iliyamo/sorting-hall/internal/service"
)

// OperatorHandler serves the hall operator console.
type OperatorHandler struct {
	Ops Operations
	Log logger.Logger
}

func NewOperatorHandler(ops Operations, log logger.Logger) *OperatorHandler {
	return &OperatorHandler{Ops: ops, Log: orNop(log)}
}

type articleReq struct {
	Article string `json:"article"`
}

type strategyReq struct {
	Strategy string `json:"strategy"`
}

// AddPallet places one pallet into the row.
func (h *OperatorHandler) AddPallet(c echo.Context) error {
	rowID, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	slot, err := h.Ops.AddPallet(c.Request().Context(), rowID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, service.SlotView{Position: slot.Position, State: slot.State})
}

// RemovePallet takes one pallet out of the row.
func (h *OperatorHandler) RemovePallet(c echo.Context) error {
	rowID, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	slot, err := h.Ops.RemovePallet(c.Request().Context(), rowID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, service.SlotView{Position: slot.Position, State: slot.State})
}

// SetArticle assigns the article label of an empty row.
func (h *OperatorHandler) SetArticle(c echo.Context) error {
	rowID, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	var req articleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Ops.SetArticle(c.Request().Context(), rowID, req.Article); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SetStrategy changes the row selection strategy.
func (h *OperatorHandler) SetStrategy(c echo.Context) error {
	var req strategyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	strategy, err := h.Ops.SetStrategy(c.Request().Context(), req.Strategy)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"strategy": strategy})
}

// Dispatch retries dispatching the row's oldest queued call.  It answers
// 200 with the dispatched call or 204 when nothing could be dispatched.
func (h *OperatorHandler) Dispatch(c echo.Context) error {
	rowID, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	call, err := h.Ops.TryDispatch(c.Request().Context(), rowID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if call == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, service.NewCallView(call))
}
