package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sorting-hall/internal/logger"
	"github.com/iliyamo/sorting-hall/internal/service"
)

const readTimeout = 5 * time.Second

// TableHandler serves the kiosk of a work table.
type TableHandler struct {
	Calls Calls
	Views Views
	Log   logger.Logger
}

func NewTableHandler(calls Calls, views Views, log logger.Logger) *TableHandler {
	return &TableHandler{Calls: calls, Views: views, Log: orNop(log)}
}

// callReq names either a row or an article.  Exactly one must be set.
type callReq struct {
	RowID   int64  `json:"row_id"`
	Article string `json:"article"`
}

type callResp struct {
	Created bool             `json:"created"`
	Call    service.CallView `json:"call"`
}

// RequestCall asks for one pallet from a row or of an article.  The
// table's existing pending call is returned unchanged when there is one.
func (h *TableHandler) RequestCall(c echo.Context) error {
	tableID, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	var req callReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	article := strings.TrimSpace(req.Article)
	if (req.RowID > 0) == (article != "") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "either row_id or article is required"})
	}

	var (
		res *service.RequestResult
		err error
	)
	if req.RowID > 0 {
		res, err = h.Calls.RequestRow(c.Request().Context(), tableID, req.RowID)
	} else {
		res, err = h.Calls.RequestArticle(c.Request().Context(), tableID, article)
	}
	if err != nil {
		return respondError(c, h.Log, err)
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	return c.JSON(status, callResp{Created: res.Created, Call: service.NewCallView(res.Call)})
}

// CancelCall cancels the table's newest pending call.
func (h *TableHandler) CancelCall(c echo.Context) error {
	tableID, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	call, err := h.Calls.CancelCall(c.Request().Context(), tableID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, service.NewCallView(call))
}

// ConfirmDelivered lets the table confirm the pallet arrived.
func (h *TableHandler) ConfirmDelivered(c echo.Context) error {
	tableID, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	call, err := h.Calls.ConfirmDelivered(c.Request().Context(), tableID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, service.NewCallView(call))
}

// Get returns the table with its pending and latest call.
func (h *TableHandler) Get(c echo.Context) error {
	tableID, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), readTimeout)
	defer cancel()
	view, err := h.Views.Table(ctx, tableID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, view)
}
