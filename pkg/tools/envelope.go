// Package tools exposes the collector's query, detection, and command
// operations as MCP tools. Every query tool returns the same envelope so an
// agent can consume any of them uniformly.
package tools

import (
	"fmt"

	"github.com/spyglass-dev/spyglass/pkg/detect"
	"github.com/spyglass-dev/spyglass/pkg/models"
)

// maxEnvelopeIssues caps the issue strings attached to a single envelope.
const maxEnvelopeIssues = 10

// TimeRange is the inclusive timestamp span of the returned events, in
// epoch milliseconds. Zero when the result is empty.
type TimeRange struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// Metadata describes the window an envelope was computed over.
type Metadata struct {
	TimeRange  TimeRange `json:"timeRange"`
	EventCount int       `json:"eventCount"`
	SessionID  string    `json:"sessionId,omitempty"`
}

// Envelope is the standard tool response shape.
type Envelope struct {
	Summary  string   `json:"summary"`
	Data     any      `json:"data"`
	Issues   []string `json:"issues"`
	Metadata Metadata `json:"metadata"`
}

// newEnvelope builds an envelope around a window of events, attaching any
// issues the detector finds in that same window.
func newEnvelope(summary string, data any, events []*models.Event, sessionID string) Envelope {
	env := Envelope{
		Summary: summary,
		Data:    data,
		Issues:  issueStrings(events),
		Metadata: Metadata{
			TimeRange:  timeRangeOf(events),
			EventCount: len(events),
			SessionID:  sessionID,
		},
	}
	return env
}

func timeRangeOf(events []*models.Event) TimeRange {
	var tr TimeRange
	for _, ev := range events {
		if tr.From == 0 || ev.Timestamp < tr.From {
			tr.From = ev.Timestamp
		}
		if ev.Timestamp > tr.To {
			tr.To = ev.Timestamp
		}
	}
	return tr
}

// issueStrings summarizes detector findings over a window as short strings.
func issueStrings(events []*models.Event) []string {
	issues := detect.Detect(events)
	out := make([]string, 0, len(issues))
	for _, issue := range issues {
		if len(out) >= maxEnvelopeIssues {
			out = append(out, fmt.Sprintf("(%d more issues truncated)", len(issues)-maxEnvelopeIssues))
			break
		}
		out = append(out, fmt.Sprintf("[%s] %s: %s", issue.Severity, issue.Pattern, issue.Title))
	}
	return out
}
