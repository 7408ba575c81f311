package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwtly10/tradedesk/internal/types"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps the sentinel errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrPositionNotFound),
		errors.Is(err, types.ErrOrderNotFound),
		errors.Is(err, types.ErrSymbolNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrInvalidStateTransition):
		return http.StatusConflict
	case errors.Is(err, types.ErrInsufficientFunds),
		errors.Is(err, types.ErrInvalidQuantity),
		errors.Is(err, types.ErrInvalidPrice),
		errors.Is(err, types.ErrInvalidOrder),
		errors.Is(err, types.ErrInsufficientLiquidity),
		errors.Is(err, types.ErrInvalidInputSeries),
		errors.Is(err, types.ErrInvalidPeriod),
		errors.Is(err, types.ErrInvalidConfig):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}
