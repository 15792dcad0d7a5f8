package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sorting-hall/internal/logger"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID reuses an incoming X-Request-ID or assigns a new UUID, and
// echoes it on the response.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			c.Set("request_id", id)
			c.Response().Header().Set(RequestIDHeader, id)
			return next(c)
		}
	}
}

// RequestLogger writes one entry per request.  The level follows the
// status class: 5xx error, 4xx warn, everything else info.
func RequestLogger(log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			req, res := c.Request(), c.Response()
			format := "%s %s -> %d in %s (request %s, %s)"
			args := []any{req.Method, req.URL.Path, res.Status, time.Since(start).Round(time.Microsecond),
				res.Header().Get(RequestIDHeader), subject(c)}
			switch {
			case res.Status >= 500:
				log.Errorf(format, args...)
			case res.Status >= 400:
				log.Warnf(format, args...)
			default:
				log.Infof(format, args...)
			}
			return nil
		}
	}
}
