package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/spyglass-dev/spyglass/pkg/version"
)

// healthHandler handles GET /health. The collector has no external
// dependencies to probe; the response reports liveness and basic counts.
func (s *Server) healthHandler(c *echo.Context) error {
	stats := s.coll.CollectStats()
	return c.JSON(http.StatusOK, &HealthResponse{
		Status:            "healthy",
		Version:           version.GitCommit,
		Sessions:          stats.Sessions,
		ConnectedSessions: stats.ConnectedSessions,
		EventCount:        stats.TotalEvents,
	})
}
