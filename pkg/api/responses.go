package api

import (
	"github.com/spyglass-dev/spyglass/pkg/apidiscovery"
	"github.com/spyglass-dev/spyglass/pkg/models"
)

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status            string `json:"status"`
	Version           string `json:"version"`
	Sessions          int    `json:"sessions"`
	ConnectedSessions int    `json:"connectedSessions"`
	EventCount        int    `json:"eventCount"`
}

// TimelineResponse is the GET /api/v1/events/timeline body.
type TimelineResponse struct {
	Events []*models.Event `json:"events"`
	Count  int             `json:"count"`
}

// IssuesResponse is the GET /api/v1/issues body.
type IssuesResponse struct {
	Issues     []models.Issue `json:"issues"`
	EventCount int            `json:"eventCount"`
}

// EndpointsResponse is the GET /api/v1/endpoints body.
type EndpointsResponse struct {
	Endpoints   []apidiscovery.EndpointStats `json:"endpoints"`
	Regressions []apidiscovery.Regression    `json:"regressions"`
}

// ClearResponse is the POST /api/v1/events/clear body.
type ClearResponse struct {
	Cleared int `json:"cleared"`
}
