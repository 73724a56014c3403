package models

// Severity ranks detected issues. Higher sorts first.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Rank returns a numeric severity rank for sorting, highest first.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Evidence ties an issue back to the events that triggered it.
type Evidence struct {
	FirstEventID string `json:"firstEventId,omitempty"`
	LastEventID  string `json:"lastEventId,omitempty"`
	Count        int    `json:"count"`
}

// Issue is one pattern match produced by the detector.
type Issue struct {
	Severity    Severity `json:"severity"`
	Pattern     string   `json:"pattern"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Evidence    Evidence `json:"evidence"`
	Suggestion  string   `json:"suggestion,omitempty"`

	// FirstSeen is the timestamp of the earliest contributing event,
	// used as the secondary sort key after severity.
	FirstSeen int64 `json:"firstSeen"`
}
