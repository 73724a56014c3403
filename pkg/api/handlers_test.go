package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spyglass-dev/spyglass/pkg/collector"
	"github.com/spyglass-dev/spyglass/pkg/config"
	"github.com/spyglass-dev/spyglass/pkg/models"
	"github.com/spyglass-dev/spyglass/pkg/store"
)

func newTestServer(t *testing.T) *Server {
	// httptest requests come from 192.0.2.1
	return newTestServerWithRemote(t, true)
}

func newTestServerWithRemote(t *testing.T, allowRemote bool) *Server {
	t.Helper()
	coll := collector.New(store.New(1000), collector.DefaultConfig())
	cfg := config.Default().Server
	cfg.AllowRemote = allowRemote
	return NewServer(cfg, coll)
}

func seedEvents(t *testing.T, s *Server) {
	t.Helper()
	st := s.coll.Store()
	require.NoError(t, st.Add(&models.Event{
		EventID: "c1", SessionID: "s1", Timestamp: 1000, Type: models.EventTypeConsole,
		Console: &models.ConsoleBody{Level: models.LevelError, Message: "boom"},
	}))
	require.NoError(t, st.Add(&models.Event{
		EventID: "n1", SessionID: "s1", Timestamp: 2000, Type: models.EventTypeNetwork,
		Network: &models.NetworkBody{Method: "GET", URL: "/api/users/5", Status: 500, Duration: 40},
	}))
}

func doRequest(s *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t)
	seedEvents(t, s)

	rec := doRequest(s, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 2, resp.EventCount)
	assert.NotEmpty(t, resp.Version)
}

func TestTimelineHandler(t *testing.T) {
	s := newTestServer(t)
	seedEvents(t, s)

	t.Run("all events ascending", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/api/v1/events/timeline")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp TimelineResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, 2, resp.Count)
		assert.Equal(t, "c1", resp.Events[0].EventID)
		assert.Equal(t, "n1", resp.Events[1].EventID)
	})

	t.Run("type filter", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/api/v1/events/timeline?types=network")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp TimelineResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, 1, resp.Count)
		assert.Equal(t, "n1", resp.Events[0].EventID)
	})

	t.Run("invalid since_seconds", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/api/v1/events/timeline?since_seconds=nope")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = doRequest(s, http.MethodGet, "/api/v1/events/timeline?since_seconds=-5")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestClearEventsHandler(t *testing.T) {
	s := newTestServer(t)
	seedEvents(t, s)

	rec := doRequest(s, http.MethodPost, "/api/v1/events/clear")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ClearResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Cleared)
	assert.Equal(t, 0, s.coll.Store().EventCount())
}

func TestIssuesHandler(t *testing.T) {
	s := newTestServer(t)
	seedEvents(t, s)

	rec := doRequest(s, http.MethodGet, "/api/v1/issues")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp IssuesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.EventCount)
	require.Len(t, resp.Issues, 1)
	assert.Equal(t, "failed-request", resp.Issues[0].Pattern)

	rec = doRequest(s, http.MethodGet, "/api/v1/issues?severity=low")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Issues)
}

func TestEndpointsHandler(t *testing.T) {
	s := newTestServer(t)
	seedEvents(t, s)

	rec := doRequest(s, http.MethodGet, "/api/v1/endpoints")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp EndpointsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Endpoints, 1)
	assert.Equal(t, "GET /api/users/:id", resp.Endpoints[0].Key())
	assert.Empty(t, resp.Regressions)
}

func TestListSessionsHandler(t *testing.T) {
	s := newTestServer(t)
	s.coll.Registry().Register("s1", &models.SessionBody{AppName: "shop"}, nil)

	rec := doRequest(s, http.MethodGet, "/api/v1/sessions")
	require.Equal(t, http.StatusOK, rec.Code)

	var sessions []models.SessionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "shop", sessions[0].AppName)
}

func TestStatsHandler(t *testing.T) {
	s := newTestServer(t)
	seedEvents(t, s)

	rec := doRequest(s, http.MethodGet, "/api/v1/system/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats collector.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.TotalEvents)
	assert.Equal(t, 1, stats.EventCounts[models.EventTypeNetwork])
}

func TestDOMSnapshotHandler_NoSession(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/v1/sessions/ghost/commands/dom-snapshot")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
