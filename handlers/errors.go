package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/authsession/internal/apperror"
	"github.com/tech-arch1tect/authsession/services/logging"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Msg    string `json:"msg"`
	Status int    `json:"status"`
}

const routeNotFoundMessage = "Route does not exist"

// ErrorHandler renders every handler error as {msg, status}.
func ErrorHandler(logger *logging.Service) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := apperror.Status(err)
		msg := apperror.Message(err)

		if errors.Is(err, echo.ErrNotFound) {
			msg = routeNotFoundMessage
		}

		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Error(err))
			msg = apperror.InternalMessage
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, ErrorResponse{Msg: msg, Status: status})
		}
		if writeErr != nil {
			logger.Warn("failed to write error response", zap.Error(writeErr))
		}
	}
}
