package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/spyglass-dev/spyglass/pkg/apidiscovery"
	"github.com/spyglass-dev/spyglass/pkg/detect"
	"github.com/spyglass-dev/spyglass/pkg/models"
	"github.com/spyglass-dev/spyglass/pkg/store"
)

// issuesHandler handles GET /api/v1/issues. Query params: since_seconds,
// severity.
func (s *Server) issuesHandler(c *echo.Context) error {
	sinceSeconds := 0
	if v := c.QueryParam("since_seconds"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid since_seconds")
		}
		sinceSeconds = n
	}

	events := s.coll.Store().GetEventTimeline(store.TimelineFilter{SinceSeconds: sinceSeconds})
	issues := detect.Detect(events)

	if v := c.QueryParam("severity"); v != "" {
		want := models.Severity(v)
		kept := issues[:0]
		for _, issue := range issues {
			if issue.Severity == want {
				kept = append(kept, issue)
			}
		}
		issues = kept
	}

	return c.JSON(http.StatusOK, &IssuesResponse{Issues: issues, EventCount: len(events)})
}

// endpointsHandler handles GET /api/v1/endpoints.
func (s *Server) endpointsHandler(c *echo.Context) error {
	sinceSeconds := 0
	if v := c.QueryParam("since_seconds"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid since_seconds")
		}
		sinceSeconds = n
	}

	events := s.coll.Store().GetNetworkRequests(store.NetworkFilter{SinceSeconds: sinceSeconds})
	return c.JSON(http.StatusOK, &EndpointsResponse{
		Endpoints:   apidiscovery.Aggregate(events),
		Regressions: apidiscovery.Regressions(events),
	})
}
