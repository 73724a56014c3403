package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/spyglass-dev/spyglass/pkg/apidiscovery"
	"github.com/spyglass-dev/spyglass/pkg/collector"
	"github.com/spyglass-dev/spyglass/pkg/detect"
	"github.com/spyglass-dev/spyglass/pkg/models"
	"github.com/spyglass-dev/spyglass/pkg/store"
	"github.com/spyglass-dev/spyglass/pkg/version"
)

// DefaultResultLimit bounds how many events a query tool returns when the
// caller does not set a limit.
const DefaultResultLimit = 100

// Service implements the tool handlers over a collector.
type Service struct {
	coll *collector.Collector
}

// NewService creates the tool service.
func NewService(coll *collector.Collector) *Service {
	return &Service{coll: coll}
}

// NewServer builds an MCP server with every tool registered.
func NewServer(coll *collector.Collector) *mcpsdk.Server {
	s := NewService(coll)
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    version.AppName,
		Version: version.GitCommit,
	}, nil)
	for _, t := range s.Tools() {
		server.AddTool(t.Tool, t.Handler)
	}
	return server
}

// ToolDef pairs a tool declaration with its handler.
type ToolDef struct {
	Tool    *mcpsdk.Tool
	Handler mcpsdk.ToolHandler
}

// Tools returns every tool definition in registration order.
func (s *Service) Tools() []ToolDef {
	return []ToolDef{
		{tool("get_console_messages",
			"Query captured console messages, newest first. Filter by level, substring, session, and age.",
			consoleSchema), s.getConsoleMessages},
		{tool("get_network_requests",
			"Query captured network requests, newest first. Filter by method, URL substring, status range, duration, session, and age.",
			networkSchema), s.getNetworkRequests},
		{tool("get_database_queries",
			"Query captured database queries, newest first. Filter by operation, query substring, duration, session, and age.",
			databaseSchema), s.getDatabaseQueries},
		{tool("get_render_profiles",
			"Query captured component render profiles, newest first. Filter by component name substring, session, and age.",
			renderSchema), s.getRenderProfiles},
		{tool("get_performance_metrics",
			"Query captured performance metrics (Web Vitals and server timings), newest first. Filter by metric name, rating, session, and age.",
			performanceSchema), s.getPerformanceMetrics},
		{tool("get_state_changes",
			"Query captured state-management changes, newest first. Filter by store id, session, and age.",
			stateSchema), s.getStateChanges},
		{tool("get_dom_snapshots",
			"Query stored DOM snapshots, newest first.",
			windowSchema), s.getDOMSnapshots},
		{tool("get_recon_results",
			"Query stored recon scanner results, newest first.",
			windowSchema), s.getReconResults},
		{tool("get_event_timeline",
			"Merge all event types into one timeline sorted ascending by timestamp. Filter by type list and age.",
			timelineSchema), s.getEventTimeline},
		{tool("get_session_info",
			"List known sessions with connection state and retained event counts.",
			emptySchema), s.getSessionInfo},
		{tool("detect_issues",
			"Run issue detection over the retained events and return ranked issues with evidence.",
			detectSchema), s.detectIssues},
		{tool("get_api_endpoints",
			"Aggregate network requests into per-endpoint statistics (percentiles, error rate, status counts) and latency regressions.",
			windowSchema), s.getAPIEndpoints},
		{tool("capture_dom_snapshot",
			"Ask a connected app to capture its current DOM. The snapshot is stored and returned.",
			captureSchema), s.captureDOMSnapshot},
		{tool("recon_scan",
			"Ask a connected app to run recon scanners. Results arrive as recon events; use get_recon_results to read them.",
			reconScanSchema), s.reconScan},
		{tool("recon_element_snapshot",
			"Ask a connected app for a subtree snapshot rooted at a CSS selector.",
			reconElementSchema), s.reconElementSnapshot},
		{tool("clear_events",
			"Drop all retained events and session records. Live connections stay open.",
			emptySchema), s.clearEvents},
	}
}

func tool(name, description string, schema json.RawMessage) *mcpsdk.Tool {
	parsed := new(jsonschema.Schema)
	if err := json.Unmarshal(schema, parsed); err != nil {
		panic(fmt.Sprintf("invalid tool schema for %s: %v", name, err))
	}
	return &mcpsdk.Tool{Name: name, Description: description, InputSchema: parsed}
}

// decodeArgs unmarshals the request arguments into v. Missing arguments
// leave v at its zero value.
func decodeArgs(req *mcpsdk.CallToolRequest, v any) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func jsonResult(v any) (*mcpsdk.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, nil
}

// errorResult reports a tool-level failure to the caller without failing the
// protocol call.
func errorResult(err error) (*mcpsdk.CallToolResult, error) {
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
	}, nil
}

// capNewest truncates a newest-first slice to the limit.
func capNewest(events []*models.Event, limit int) []*models.Event {
	if limit <= 0 {
		limit = DefaultResultLimit
	}
	if len(events) > limit {
		return events[:limit]
	}
	return events
}

// capOldest truncates an ascending slice to the newest limit entries,
// preserving ascending order.
func capOldest(events []*models.Event, limit int) []*models.Event {
	if limit <= 0 {
		limit = DefaultResultLimit
	}
	if len(events) > limit {
		return events[len(events)-limit:]
	}
	return events
}

type consoleArgs struct {
	SinceSeconds int    `json:"sinceSeconds"`
	Level        string `json:"level"`
	Search       string `json:"search"`
	SessionID    string `json:"sessionId"`
	Limit        int    `json:"limit"`
}

func (s *Service) getConsoleMessages(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args consoleArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err)
	}
	events := capNewest(s.coll.Store().GetConsoleMessages(store.ConsoleFilter{
		SinceSeconds: args.SinceSeconds,
		Level:        args.Level,
		Search:       args.Search,
		SessionID:    args.SessionID,
	}), args.Limit)
	summary := fmt.Sprintf("%d console message(s)", len(events))
	if args.Level != "" {
		summary += " at level " + args.Level
	}
	return jsonResult(newEnvelope(summary, events, events, args.SessionID))
}

type networkArgs struct {
	SinceSeconds  int     `json:"sinceSeconds"`
	Method        string  `json:"method"`
	Search        string  `json:"search"`
	StatusMin     int     `json:"statusMin"`
	StatusMax     int     `json:"statusMax"`
	MinDurationMs float64 `json:"minDurationMs"`
	SessionID     string  `json:"sessionId"`
	Limit         int     `json:"limit"`
}

func (s *Service) getNetworkRequests(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args networkArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err)
	}
	events := capNewest(s.coll.Store().GetNetworkRequests(store.NetworkFilter{
		SinceSeconds: args.SinceSeconds,
		Method:       args.Method,
		Search:       args.Search,
		StatusMin:    args.StatusMin,
		StatusMax:    args.StatusMax,
		MinDuration:  args.MinDurationMs,
		SessionID:    args.SessionID,
	}), args.Limit)
	return jsonResult(newEnvelope(
		fmt.Sprintf("%d network request(s)", len(events)), events, events, args.SessionID))
}

type databaseArgs struct {
	SinceSeconds  int     `json:"sinceSeconds"`
	Operation     string  `json:"operation"`
	Search        string  `json:"search"`
	MinDurationMs float64 `json:"minDurationMs"`
	SessionID     string  `json:"sessionId"`
	Limit         int     `json:"limit"`
}

func (s *Service) getDatabaseQueries(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args databaseArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err)
	}
	events := capNewest(s.coll.Store().GetDatabaseQueries(store.DatabaseFilter{
		SinceSeconds: args.SinceSeconds,
		Operation:    args.Operation,
		Search:       args.Search,
		MinDuration:  args.MinDurationMs,
		SessionID:    args.SessionID,
	}), args.Limit)
	return jsonResult(newEnvelope(
		fmt.Sprintf("%d database quer(ies)", len(events)), events, events, args.SessionID))
}

type renderArgs struct {
	SinceSeconds int    `json:"sinceSeconds"`
	Component    string `json:"component"`
	SessionID    string `json:"sessionId"`
	Limit        int    `json:"limit"`
}

func (s *Service) getRenderProfiles(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args renderArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err)
	}
	events := capNewest(s.coll.Store().GetRenderProfiles(store.RenderFilter{
		SinceSeconds: args.SinceSeconds,
		Component:    args.Component,
		SessionID:    args.SessionID,
	}), args.Limit)
	return jsonResult(newEnvelope(
		fmt.Sprintf("%d render profile snapshot(s)", len(events)), events, events, args.SessionID))
}

type performanceArgs struct {
	SinceSeconds int    `json:"sinceSeconds"`
	MetricName   string `json:"metricName"`
	Rating       string `json:"rating"`
	SessionID    string `json:"sessionId"`
	Limit        int    `json:"limit"`
}

func (s *Service) getPerformanceMetrics(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args performanceArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err)
	}
	events := capNewest(s.coll.Store().GetPerformanceMetrics(store.PerformanceFilter{
		SinceSeconds: args.SinceSeconds,
		MetricName:   args.MetricName,
		Rating:       args.Rating,
		SessionID:    args.SessionID,
	}), args.Limit)
	return jsonResult(newEnvelope(
		fmt.Sprintf("%d performance metric(s)", len(events)), events, events, args.SessionID))
}

type stateArgs struct {
	SinceSeconds int    `json:"sinceSeconds"`
	StoreID      string `json:"storeId"`
	SessionID    string `json:"sessionId"`
	Limit        int    `json:"limit"`
}

func (s *Service) getStateChanges(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args stateArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err)
	}
	events := capNewest(s.coll.Store().GetStateChanges(store.StateFilter{
		SinceSeconds: args.SinceSeconds,
		StoreID:      args.StoreID,
		SessionID:    args.SessionID,
	}), args.Limit)
	return jsonResult(newEnvelope(
		fmt.Sprintf("%d state change(s)", len(events)), events, events, args.SessionID))
}

type windowArgs struct {
	SinceSeconds int    `json:"sinceSeconds"`
	SessionID    string `json:"sessionId"`
	Limit        int    `json:"limit"`
}

func (s *Service) getDOMSnapshots(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args windowArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err)
	}
	events := capNewest(s.coll.Store().GetDOMSnapshots(store.EventFilter{
		SinceSeconds: args.SinceSeconds,
		SessionID:    args.SessionID,
	}), args.Limit)
	return jsonResult(newEnvelope(
		fmt.Sprintf("%d DOM snapshot(s)", len(events)), events, events, args.SessionID))
}

func (s *Service) getReconResults(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args windowArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err)
	}
	events := capNewest(s.coll.Store().GetReconResults(store.EventFilter{
		SinceSeconds: args.SinceSeconds,
		SessionID:    args.SessionID,
	}), args.Limit)
	return jsonResult(newEnvelope(
		fmt.Sprintf("%d recon result(s)", len(events)), events, events, args.SessionID))
}

type timelineArgs struct {
	SinceSeconds int      `json:"sinceSeconds"`
	Types        []string `json:"types"`
	Limit        int      `json:"limit"`
}

func (s *Service) getEventTimeline(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args timelineArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err)
	}
	types := make([]models.EventType, 0, len(args.Types))
	for _, t := range args.Types {
		types = append(types, models.EventType(t))
	}
	events := capOldest(s.coll.Store().GetEventTimeline(store.TimelineFilter{
		SinceSeconds: args.SinceSeconds,
		Types:        types,
	}), args.Limit)
	return jsonResult(newEnvelope(
		fmt.Sprintf("%d event(s), oldest first", len(events)), events, events, ""))
}

func (s *Service) getSessionInfo(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	sessions := s.coll.GetSessionInfo()
	connected := 0
	for _, sess := range sessions {
		if sess.IsConnected {
			connected++
		}
	}
	return jsonResult(newEnvelope(
		fmt.Sprintf("%d session(s), %d connected", len(sessions), connected),
		sessions, nil, ""))
}

type detectArgs struct {
	SinceSeconds   int    `json:"sinceSeconds"`
	SeverityFilter string `json:"severityFilter"`
}

func (s *Service) detectIssues(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args detectArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err)
	}
	events := s.coll.Store().GetEventTimeline(store.TimelineFilter{SinceSeconds: args.SinceSeconds})
	issues := detect.Detect(events)
	if args.SeverityFilter != "" {
		want := models.Severity(args.SeverityFilter)
		kept := issues[:0]
		for _, issue := range issues {
			if issue.Severity == want {
				kept = append(kept, issue)
			}
		}
		issues = kept
	}
	return jsonResult(newEnvelope(
		fmt.Sprintf("%d issue(s) detected over %d event(s)", len(issues), len(events)),
		issues, events, ""))
}

func (s *Service) getAPIEndpoints(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args windowArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err)
	}
	events := s.coll.Store().GetNetworkRequests(store.NetworkFilter{
		SinceSeconds: args.SinceSeconds,
		SessionID:    args.SessionID,
	})
	endpoints := apidiscovery.Aggregate(events)
	regressions := apidiscovery.Regressions(events)
	data := map[string]any{
		"endpoints":   endpoints,
		"regressions": regressions,
	}
	return jsonResult(newEnvelope(
		fmt.Sprintf("%d endpoint(s) from %d request(s), %d regression(s)",
			len(endpoints), len(events), len(regressions)),
		data, events, args.SessionID))
}

type captureArgs struct {
	SessionID string `json:"sessionId"`
	MaxSize   int    `json:"maxSize"`
	TimeoutMs int    `json:"timeoutMs"`
}

func (s *Service) captureDOMSnapshot(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args captureArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err)
	}
	target, err := s.coll.ResolveCommandTarget(args.SessionID)
	if err != nil {
		return errorResult(err)
	}
	body, err := s.coll.CaptureDOMSnapshot(ctx, target,
		models.CaptureDOMSnapshotParams{MaxSize: args.MaxSize},
		time.Duration(args.TimeoutMs)*time.Millisecond)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(newEnvelope(
		fmt.Sprintf("DOM snapshot captured from session %s (%d element(s))", target, body.ElementCount),
		body, nil, target))
}

type reconScanArgs struct {
	SessionID  string   `json:"sessionId"`
	Categories []string `json:"categories"`
	TimeoutMs  int      `json:"timeoutMs"`
}

func (s *Service) reconScan(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args reconScanArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err)
	}
	target, err := s.coll.ResolveCommandTarget(args.SessionID)
	if err != nil {
		return errorResult(err)
	}
	ack, err := s.coll.ReconScan(ctx, target,
		models.ReconScanParams{Categories: args.Categories},
		time.Duration(args.TimeoutMs)*time.Millisecond)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(newEnvelope(
		fmt.Sprintf("Recon scan started on session %s; results arrive as recon events", target),
		json.RawMessage(ack), nil, target))
}

type reconElementArgs struct {
	SessionID string `json:"sessionId"`
	Selector  string `json:"selector"`
	Depth     int    `json:"depth"`
	TimeoutMs int    `json:"timeoutMs"`
}

func (s *Service) reconElementSnapshot(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args reconElementArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err)
	}
	if args.Selector == "" {
		return errorResult(fmt.Errorf("selector is required"))
	}
	target, err := s.coll.ResolveCommandTarget(args.SessionID)
	if err != nil {
		return errorResult(err)
	}
	data, err := s.coll.ReconElementSnapshot(ctx, target,
		models.ReconElementSnapshotParams{Selector: args.Selector, Depth: args.Depth},
		time.Duration(args.TimeoutMs)*time.Millisecond)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(newEnvelope(
		fmt.Sprintf("Element snapshot captured for %q on session %s", args.Selector, target),
		json.RawMessage(data), nil, target))
}

func (s *Service) clearEvents(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	dropped := s.coll.Store().EventCount()
	s.coll.Clear()
	return jsonResult(newEnvelope(
		fmt.Sprintf("Cleared %d retained event(s)", dropped), nil, nil, ""))
}
