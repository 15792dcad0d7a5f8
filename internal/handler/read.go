package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sorting-hall/internal/logger"
)

// Subscriber delivers a tick for every hall change.
type Subscriber interface {
	Subscribe() <-chan time.Time
	Unsubscribe(<-chan time.Time)
}

// ReadHandler serves the hall displays.
type ReadHandler struct {
	Views   Views
	Changes Subscriber
	Log     logger.Logger
}

func NewReadHandler(views Views, changes Subscriber, log logger.Logger) *ReadHandler {
	return &ReadHandler{Views: views, Changes: changes, Log: orNop(log)}
}

// Hall returns every row with slots, counts and queue.
func (h *ReadHandler) Hall(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readTimeout)
	defer cancel()
	view, err := h.Views.Hall(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, view)
}

// Tables returns every table with its pending and latest call.
func (h *ReadHandler) Tables(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readTimeout)
	defer cancel()
	tables, err := h.Views.Tables(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tables": tables})
}

// Status returns the status bar content.
func (h *ReadHandler) Status(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readTimeout)
	defer cancel()
	view, err := h.Views.Status(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, view)
}

// Events streams one server-sent event per hall change until the client
// goes away.  Displays refetch the read API on each event.
func (h *ReadHandler) Events(c echo.Context) error {
	if h.Changes == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "event stream disabled"})
	}
	sub := h.Changes.Subscribe()
	defer h.Changes.Unsubscribe(sub)

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()
	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case at, ok := <-sub:
			if !ok {
				return nil
			}
			if _, err := fmt.Fprintf(res, "event: hall\ndata: %d\n\n", at.UnixMilli()); err != nil {
				return nil
			}
			res.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
