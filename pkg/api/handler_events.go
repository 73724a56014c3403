package api

import (
	"net/http"
	"strconv"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/spyglass-dev/spyglass/pkg/models"
	"github.com/spyglass-dev/spyglass/pkg/store"
)

// timelineHandler handles GET /api/v1/events/timeline. Events are returned
// oldest first. Query params: since_seconds, types (comma-separated).
func (s *Server) timelineHandler(c *echo.Context) error {
	f := store.TimelineFilter{}
	if v := c.QueryParam("since_seconds"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid since_seconds")
		}
		f.SinceSeconds = n
	}
	if v := c.QueryParam("types"); v != "" {
		for _, t := range strings.Split(v, ",") {
			f.Types = append(f.Types, models.EventType(strings.TrimSpace(t)))
		}
	}

	events := s.coll.Store().GetEventTimeline(f)
	return c.JSON(http.StatusOK, &TimelineResponse{Events: events, Count: len(events)})
}

// clearEventsHandler handles POST /api/v1/events/clear.
func (s *Server) clearEventsHandler(c *echo.Context) error {
	cleared := s.coll.Store().EventCount()
	s.coll.Clear()
	return c.JSON(http.StatusOK, &ClearResponse{Cleared: cleared})
}
