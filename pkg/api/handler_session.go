package api

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/spyglass-dev/spyglass/pkg/models"
)

// listSessionsHandler handles GET /api/v1/sessions.
func (s *Server) listSessionsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.coll.GetSessionInfo())
}

// domSnapshotHandler handles POST /api/v1/sessions/:id/commands/dom-snapshot.
// Issues a capture command down the session's socket and returns the stored
// snapshot body.
func (s *Server) domSnapshotHandler(c *echo.Context) error {
	sessionID := c.Param("id")

	maxSize, _ := strconv.Atoi(c.QueryParam("maxSize"))
	timeoutMs, _ := strconv.Atoi(c.QueryParam("timeoutMs"))

	body, err := s.coll.CaptureDOMSnapshot(c.Request().Context(), sessionID,
		models.CaptureDOMSnapshotParams{MaxSize: maxSize},
		time.Duration(timeoutMs)*time.Millisecond)
	if err != nil {
		return mapCollectorError(err)
	}
	return c.JSON(http.StatusOK, body)
}
