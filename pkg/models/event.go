// Package models defines the event data model shared by the collector,
// the event store, the detectors, and the tool surface.
//
// An Event is a tagged union over event types. Inbound frames are flat JSON
// records carrying an "eventType" discriminator plus a common header
// (eventId, sessionId, timestamp in wall-clock milliseconds) and
// type-specific fields. Decoding is polymorphic on the discriminator;
// encoding flattens the active variant back into the same wire shape.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// EventType discriminates event variants on the wire.
type EventType string

const (
	EventTypeSession     EventType = "session"
	EventTypeNetwork     EventType = "network"
	EventTypeConsole     EventType = "console"
	EventTypeState       EventType = "state"
	EventTypeRender      EventType = "render"
	EventTypePerformance EventType = "performance"
	EventTypeDatabase    EventType = "database"
	EventTypeDOMSnapshot EventType = "dom_snapshot"

	// ReconPrefix marks scanner result events. The collector treats all
	// recon_* payloads opaquely and stores them in a single ring.
	ReconPrefix = "recon_"

	// EventTypeRecon is the canonical ring tag shared by all recon_* events.
	EventTypeRecon EventType = "recon"
)

// CoreEventTypes lists every canonical ring tag, in a stable order used by
// timeline merges and stats reporting.
var CoreEventTypes = []EventType{
	EventTypeSession,
	EventTypeNetwork,
	EventTypeConsole,
	EventTypeState,
	EventTypeRender,
	EventTypePerformance,
	EventTypeDatabase,
	EventTypeDOMSnapshot,
	EventTypeRecon,
}

// Decode errors. ErrInvalidFrame means the bytes were not a JSON event
// record at all; ErrInvalidEvent means the record decoded but is missing
// required header fields or carries an unknown tag. Both are recoverable:
// the collector counts and drops such frames without closing the connection.
var (
	ErrInvalidFrame = errors.New("invalid frame")
	ErrInvalidEvent = errors.New("invalid event")
)

// Event is one immutable observation from an instrumented session.
// Exactly one variant pointer is non-nil, matching Type.
type Event struct {
	EventID   string
	SessionID string
	Timestamp int64 // producer-assigned wall-clock milliseconds
	Type      EventType

	Session     *SessionBody
	Network     *NetworkBody
	Console     *ConsoleBody
	State       *StateBody
	Render      *RenderBody
	Performance *PerformanceBody
	Database    *DatabaseBody
	DOMSnapshot *DOMSnapshotBody
	Recon       *ReconBody
}

// SessionBody announces a new instrumented process.
type SessionBody struct {
	AppName     string `json:"appName"`
	ConnectedAt int64  `json:"connectedAt"`
	SDKVersion  string `json:"sdkVersion,omitempty"`
}

// GraphQLInfo identifies a GraphQL operation carried over an HTTP request.
type GraphQLInfo struct {
	Type string `json:"type"` // "query", "mutation", "subscription"
	Name string `json:"name"`
}

// NetworkBody is one captured HTTP request/response pair.
type NetworkBody struct {
	Method          string            `json:"method"`
	URL             string            `json:"url"`
	Status          int               `json:"status"`
	Duration        float64           `json:"duration"` // milliseconds
	RequestHeaders  map[string]string `json:"requestHeaders,omitempty"`
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty"`
	RequestSize     int64             `json:"requestSize,omitempty"`
	ResponseSize    int64             `json:"responseSize,omitempty"`
	GraphQL         *GraphQLInfo      `json:"graphql,omitempty"`
}

// Console log levels.
const (
	LevelLog   = "log"
	LevelWarn  = "warn"
	LevelError = "error"
	LevelInfo  = "info"
	LevelDebug = "debug"
	LevelTrace = "trace"
)

// ConsoleBody is one captured console call.
type ConsoleBody struct {
	Level      string            `json:"level"`
	Message    string            `json:"message"`
	Args       []json.RawMessage `json:"args,omitempty"`
	StackTrace string            `json:"stackTrace,omitempty"`
	SourceFile string            `json:"sourceFile,omitempty"`
}

// StateBody is one state-management store transition.
type StateBody struct {
	StoreID string          `json:"storeId"`
	Library string          `json:"library"`
	Phase   string          `json:"phase"`
	Action  string          `json:"action,omitempty"`
	Diff    json.RawMessage `json:"diff,omitempty"`
}

// RenderProfile is per-component render statistics within one snapshot window.
type RenderProfile struct {
	ComponentName  string  `json:"componentName"`
	RenderCount    int     `json:"renderCount"`
	TotalDuration  float64 `json:"totalDuration"`
	AvgDuration    float64 `json:"avgDuration"`
	RenderVelocity float64 `json:"renderVelocity"`
	Suspicious     bool    `json:"suspicious"`
}

// RenderBody aggregates component render activity over a snapshot window.
type RenderBody struct {
	Profiles             []RenderProfile `json:"profiles"`
	TotalRenders         int             `json:"totalRenders"`
	SuspiciousComponents []string        `json:"suspiciousComponents,omitempty"`
	SnapshotWindowMs     int64           `json:"snapshotWindowMs"`
}

// Web Vital ratings assigned by producers. Server-side metrics omit the rating.
const (
	RatingGood             = "good"
	RatingNeedsImprovement = "needs-improvement"
	RatingPoor             = "poor"
)

// PerformanceBody is one performance metric sample (Web Vital or server metric).
type PerformanceBody struct {
	MetricName string  `json:"metricName"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit,omitempty"`
	Rating     string  `json:"rating,omitempty"`
	Element    string  `json:"element,omitempty"`
}

// Database operations recognized by the query classifier.
const (
	OpSelect = "SELECT"
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
	OpOther  = "OTHER"
)

// DatabaseBody is one captured database query execution.
type DatabaseBody struct {
	Query           string   `json:"query"`
	NormalizedQuery string   `json:"normalizedQuery,omitempty"`
	Duration        float64  `json:"duration"` // milliseconds
	Operation       string   `json:"operation"`
	TablesAccessed  []string `json:"tablesAccessed,omitempty"`
	RowsReturned    *int64   `json:"rowsReturned,omitempty"`
	RowsAffected    *int64   `json:"rowsAffected,omitempty"`
	Source          string   `json:"source,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// Viewport is the visible page dimensions at snapshot time.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ScrollPosition is the page scroll offset at snapshot time.
type ScrollPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DOMSnapshotBody is a captured DOM serialization.
type DOMSnapshotBody struct {
	URL            string         `json:"url"`
	HTML           string         `json:"html"`
	Viewport       Viewport       `json:"viewport"`
	ScrollPosition ScrollPosition `json:"scrollPosition"`
	ElementCount   int            `json:"elementCount"`
	Truncated      bool           `json:"truncated"`
}

// ReconBody holds a scanner result payload. The concrete tag (e.g.
// "recon_design_tokens") is preserved in Tag; the payload itself is the
// original frame and is never interpreted by the core.
type ReconBody struct {
	Tag  string
	Data json.RawMessage
}

// CanonicalTag maps an event to its ring tag. All recon_* events share the
// "recon" ring.
func (e *Event) CanonicalTag() EventType {
	if e.Recon != nil || strings.HasPrefix(string(e.Type), ReconPrefix) {
		return EventTypeRecon
	}
	return e.Type
}

// eventHeader is the common wire header shared by every event variant.
type eventHeader struct {
	EventType string `json:"eventType"`
	EventID   string `json:"eventId"`
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
}

// DecodeEvent parses a flat wire record into a typed Event.
//
// Returns ErrInvalidFrame when the bytes are not a JSON object, and
// ErrInvalidEvent when the discriminator is missing/unknown or a required
// header field is absent. Unknown non-header fields are ignored.
func DecodeEvent(data []byte) (*Event, error) {
	var hdr eventHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if hdr.EventType == "" {
		return nil, fmt.Errorf("%w: missing eventType", ErrInvalidEvent)
	}
	if hdr.EventID == "" {
		return nil, fmt.Errorf("%w: missing eventId", ErrInvalidEvent)
	}
	if hdr.SessionID == "" {
		return nil, fmt.Errorf("%w: missing sessionId", ErrInvalidEvent)
	}
	if hdr.Timestamp <= 0 {
		return nil, fmt.Errorf("%w: missing timestamp", ErrInvalidEvent)
	}

	ev := &Event{
		EventID:   hdr.EventID,
		SessionID: hdr.SessionID,
		Timestamp: hdr.Timestamp,
		Type:      EventType(hdr.EventType),
	}

	var err error
	switch {
	case ev.Type == EventTypeSession:
		ev.Session = &SessionBody{}
		err = json.Unmarshal(data, ev.Session)
	case ev.Type == EventTypeNetwork:
		ev.Network = &NetworkBody{}
		err = json.Unmarshal(data, ev.Network)
	case ev.Type == EventTypeConsole:
		ev.Console = &ConsoleBody{}
		err = json.Unmarshal(data, ev.Console)
	case ev.Type == EventTypeState:
		ev.State = &StateBody{}
		err = json.Unmarshal(data, ev.State)
	case ev.Type == EventTypeRender:
		ev.Render = &RenderBody{}
		err = json.Unmarshal(data, ev.Render)
	case ev.Type == EventTypePerformance:
		ev.Performance = &PerformanceBody{}
		err = json.Unmarshal(data, ev.Performance)
	case ev.Type == EventTypeDatabase:
		ev.Database = &DatabaseBody{}
		err = json.Unmarshal(data, ev.Database)
	case ev.Type == EventTypeDOMSnapshot:
		ev.DOMSnapshot = &DOMSnapshotBody{}
		err = json.Unmarshal(data, ev.DOMSnapshot)
	case strings.HasPrefix(hdr.EventType, ReconPrefix):
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		ev.Recon = &ReconBody{Tag: hdr.EventType, Data: raw}
	default:
		return nil, fmt.Errorf("%w: unknown eventType %q", ErrInvalidEvent, hdr.EventType)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	return ev, nil
}

// EncodeEvent serializes a typed Event back into its flat wire record.
func EncodeEvent(ev *Event) ([]byte, error) {
	var body any
	switch {
	case ev.Session != nil:
		body = ev.Session
	case ev.Network != nil:
		body = ev.Network
	case ev.Console != nil:
		body = ev.Console
	case ev.State != nil:
		body = ev.State
	case ev.Render != nil:
		body = ev.Render
	case ev.Performance != nil:
		body = ev.Performance
	case ev.Database != nil:
		body = ev.Database
	case ev.DOMSnapshot != nil:
		body = ev.DOMSnapshot
	case ev.Recon != nil:
		// Recon payloads are stored verbatim; the original frame already
		// contains the header fields.
		return ev.Recon.Data, nil
	default:
		return nil, fmt.Errorf("event %s has no variant body", ev.EventID)
	}

	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	flat := map[string]any{}
	if err := json.Unmarshal(bodyJSON, &flat); err != nil {
		return nil, err
	}
	flat["eventType"] = string(ev.Type)
	flat["eventId"] = ev.EventID
	flat["sessionId"] = ev.SessionID
	flat["timestamp"] = ev.Timestamp
	return json.Marshal(flat)
}

// MarshalJSON flattens the event into its wire shape.
func (e *Event) MarshalJSON() ([]byte, error) {
	return EncodeEvent(e)
}

// UnmarshalJSON parses the wire shape via DecodeEvent.
func (e *Event) UnmarshalJSON(data []byte) error {
	ev, err := DecodeEvent(data)
	if err != nil {
		return err
	}
	*e = *ev
	return nil
}
