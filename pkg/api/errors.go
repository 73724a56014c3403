package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/spyglass-dev/spyglass/pkg/collector"
	"github.com/spyglass-dev/spyglass/pkg/models"
)

// mapCollectorError maps collector-layer errors to HTTP error responses.
func mapCollectorError(err error) *echo.HTTPError {
	if errors.Is(err, collector.ErrNoSession) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found or not connected")
	}
	if errors.Is(err, collector.ErrTimeout) {
		return echo.NewHTTPError(http.StatusGatewayTimeout, "command timed out")
	}
	if errors.Is(err, collector.ErrDisconnected) {
		return echo.NewHTTPError(http.StatusConflict, "session disconnected before replying")
	}
	if errors.Is(err, collector.ErrShutdown) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "server is shutting down")
	}
	if errors.Is(err, models.ErrInvalidFrame) || errors.Is(err, models.ErrInvalidEvent) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	// Unexpected error
	slog.Error("Unexpected collector error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
