package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spyglass-dev/spyglass/pkg/collector"
	"github.com/spyglass-dev/spyglass/pkg/models"
	"github.com/spyglass-dev/spyglass/pkg/store"
)

// connect wires a client to the tool server over in-memory transports.
func connect(t *testing.T, coll *collector.Collector) *mcpsdk.ClientSession {
	t.Helper()
	ctx := context.Background()

	server := NewServer(coll)
	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()
	go func() {
		_ = server.Run(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callTool(t *testing.T, session *mcpsdk.ClientSession, name string, args map[string]any) Envelope {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)
	require.False(t, result.IsError, "tool %s returned an error result", name)
	require.Len(t, result.Content, 1)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(text.Text), &env))
	return env
}

func seedCollector(t *testing.T) *collector.Collector {
	t.Helper()
	coll := collector.New(store.New(1000), collector.DefaultConfig())
	st := coll.Store()

	for i := 0; i < 3; i++ {
		require.NoError(t, st.Add(&models.Event{
			EventID: fmt.Sprintf("c%d", i), SessionID: "s1", Timestamp: int64(1000 + i),
			Type:    models.EventTypeConsole,
			Console: &models.ConsoleBody{Level: models.LevelError, Message: "payment failed"},
		}))
	}
	require.NoError(t, st.Add(&models.Event{
		EventID: "n1", SessionID: "s1", Timestamp: 2000, Type: models.EventTypeNetwork,
		Network: &models.NetworkBody{Method: "GET", URL: "/api/orders/7", Status: 500, Duration: 120},
	}))
	return coll
}

func TestServer_ListsAllTools(t *testing.T) {
	session := connect(t, seedCollector(t))

	result, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make(map[string]bool, len(result.Tools))
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"get_console_messages", "get_network_requests", "get_database_queries",
		"get_render_profiles", "get_performance_metrics", "get_state_changes",
		"get_dom_snapshots", "get_recon_results", "get_event_timeline",
		"get_session_info", "detect_issues", "get_api_endpoints",
		"capture_dom_snapshot", "recon_scan", "recon_element_snapshot", "clear_events",
	} {
		assert.True(t, names[want], "missing tool %s", want)
	}
	assert.Len(t, result.Tools, 16)
}

func TestGetConsoleMessages_Envelope(t *testing.T) {
	session := connect(t, seedCollector(t))

	env := callTool(t, session, "get_console_messages", map[string]any{"level": "error"})

	assert.Equal(t, "3 console message(s) at level error", env.Summary)
	assert.Equal(t, 3, env.Metadata.EventCount)
	assert.Equal(t, TimeRange{From: 1000, To: 1002}, env.Metadata.TimeRange)

	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var events []*models.Event
	require.NoError(t, json.Unmarshal(data, &events))
	require.Len(t, events, 3)
	assert.Equal(t, "c2", events[0].EventID) // newest first
}

func TestGetNetworkRequests_IssuesAttached(t *testing.T) {
	session := connect(t, seedCollector(t))

	env := callTool(t, session, "get_network_requests", nil)

	require.Len(t, env.Issues, 1)
	assert.Contains(t, env.Issues[0], "[high] failed-request")
}

func TestGetEventTimeline_AscendingWithLimit(t *testing.T) {
	session := connect(t, seedCollector(t))

	env := callTool(t, session, "get_event_timeline", map[string]any{"limit": 2})

	assert.Equal(t, 2, env.Metadata.EventCount)
	data, _ := json.Marshal(env.Data)
	var events []*models.Event
	require.NoError(t, json.Unmarshal(data, &events))
	require.Len(t, events, 2)
	// The newest two, still oldest first.
	assert.Equal(t, "c2", events[0].EventID)
	assert.Equal(t, "n1", events[1].EventID)
}

func TestDetectIssues_SeverityFilter(t *testing.T) {
	session := connect(t, seedCollector(t))

	env := callTool(t, session, "detect_issues", map[string]any{"severityFilter": "high"})

	data, _ := json.Marshal(env.Data)
	var issues []models.Issue
	require.NoError(t, json.Unmarshal(data, &issues))
	require.Len(t, issues, 1)
	assert.Equal(t, "failed-request", issues[0].Pattern)
	assert.Equal(t, models.SeverityHigh, issues[0].Severity)
}

func TestGetAPIEndpoints(t *testing.T) {
	session := connect(t, seedCollector(t))

	env := callTool(t, session, "get_api_endpoints", nil)

	data, _ := json.Marshal(env.Data)
	var payload struct {
		Endpoints []json.RawMessage `json:"endpoints"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	require.Len(t, payload.Endpoints, 1)
	assert.Contains(t, string(payload.Endpoints[0]), "/api/orders/:id")
}

func TestGetSessionInfo(t *testing.T) {
	coll := seedCollector(t)
	coll.Registry().Register("s1", &models.SessionBody{AppName: "shop"}, nil)
	session := connect(t, coll)

	env := callTool(t, session, "get_session_info", nil)
	assert.Equal(t, "1 session(s), 1 connected", env.Summary)
}

func TestClearEvents(t *testing.T) {
	coll := seedCollector(t)
	session := connect(t, coll)

	env := callTool(t, session, "clear_events", nil)
	assert.Equal(t, "Cleared 4 retained event(s)", env.Summary)
	assert.Equal(t, 0, coll.Store().EventCount())
}

func TestCommandTools_NoSession(t *testing.T) {
	session := connect(t, seedCollector(t))

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      "capture_dom_snapshot",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	text := result.Content[0].(*mcpsdk.TextContent)
	assert.Contains(t, text.Text, "no connected sessions")
}

func TestReconElementSnapshot_NoSession(t *testing.T) {
	session := connect(t, seedCollector(t))

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      "recon_element_snapshot",
		Arguments: map[string]any{"selector": "#cart"},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	text := result.Content[0].(*mcpsdk.TextContent)
	assert.Contains(t, text.Text, "no connected sessions")
}
