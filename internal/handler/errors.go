package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sorting-hall/internal/logger"
	"github.com/iliyamo/sorting-hall/internal/repository"
	"github.com/iliyamo/sorting-hall/internal/service"
)

// respondError maps domain errors onto HTTP responses.  Unknown errors
// are logged to log and become a 500 without detail.
func respondError(c echo.Context, log logger.Logger, err error) error {
	switch {
	case errors.Is(err, repository.ErrRowNotFound),
		errors.Is(err, repository.ErrTableNotFound),
		errors.Is(err, service.ErrNoCandidateRow):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrCallNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no pending call"})
	case errors.Is(err, service.ErrRowFull),
		errors.Is(err, service.ErrRowEmpty),
		errors.Is(err, service.ErrRowNotEmpty),
		errors.Is(err, service.ErrArticleMissing):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrArticleRequired),
		errors.Is(err, service.ErrInvalidStrategy):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	log.Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}

// paramID parses a positive numeric route parameter.
func paramID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func orNop(log logger.Logger) logger.Logger {
	if log == nil {
		return logger.NopLogger{}
	}
	return log
}

func badID(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
}
