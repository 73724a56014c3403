package store

import (
	"strings"

	"github.com/spyglass-dev/spyglass/pkg/models"
)

// Filters compose by conjunction: every set field must match. A zero filter
// matches everything. All per-type accessors return newest-first; only the
// timeline is oldest-first.

// ConsoleFilter narrows console message queries.
type ConsoleFilter struct {
	SinceSeconds int
	Level        string // exact level match
	Search       string // case-insensitive substring of message
	SessionID    string
}

// NetworkFilter narrows network request queries.
type NetworkFilter struct {
	SinceSeconds int
	Method       string // exact method match, case-insensitive
	Search       string // case-insensitive substring of url
	StatusMin    int    // inclusive, 0 = unbounded
	StatusMax    int    // inclusive, 0 = unbounded
	MinDuration  float64
	SessionID    string
}

// DatabaseFilter narrows database query queries.
type DatabaseFilter struct {
	SinceSeconds int
	Operation    string // exact operation match (SELECT, INSERT, ...)
	Search       string // case-insensitive substring of query text
	MinDuration  float64
	SessionID    string
}

// RenderFilter narrows render profile queries.
type RenderFilter struct {
	SinceSeconds int
	Component    string // case-insensitive substring of any profile's componentName
	SessionID    string
}

// PerformanceFilter narrows performance metric queries.
type PerformanceFilter struct {
	SinceSeconds int
	MetricName   string
	Rating       string
	SessionID    string
}

// StateFilter narrows state change queries.
type StateFilter struct {
	SinceSeconds int
	StoreID      string
	SessionID    string
}

// EventFilter narrows queries that have no type-specific predicates
// (dom snapshots, recon results, session announcements).
type EventFilter struct {
	SinceSeconds int
	SessionID    string
}

// TimelineFilter narrows the merged timeline.
type TimelineFilter struct {
	SinceSeconds int
	Types        []models.EventType
}

// GetConsoleMessages returns console events, newest first.
func (s *Store) GetConsoleMessages(f ConsoleFilter) []*models.Event {
	events := s.query(models.EventTypeConsole, f.SinceSeconds, f.SessionID)
	out := events[:0]
	for _, ev := range events {
		c := ev.Console
		if f.Level != "" && c.Level != f.Level {
			continue
		}
		if f.Search != "" && !containsFold(c.Message, f.Search) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// GetNetworkRequests returns network events, newest first.
func (s *Store) GetNetworkRequests(f NetworkFilter) []*models.Event {
	events := s.query(models.EventTypeNetwork, f.SinceSeconds, f.SessionID)
	out := events[:0]
	for _, ev := range events {
		n := ev.Network
		if f.Method != "" && !strings.EqualFold(n.Method, f.Method) {
			continue
		}
		if f.Search != "" && !containsFold(n.URL, f.Search) {
			continue
		}
		if f.StatusMin > 0 && n.Status < f.StatusMin {
			continue
		}
		if f.StatusMax > 0 && n.Status > f.StatusMax {
			continue
		}
		if f.MinDuration > 0 && n.Duration < f.MinDuration {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// GetDatabaseQueries returns database events, newest first.
func (s *Store) GetDatabaseQueries(f DatabaseFilter) []*models.Event {
	events := s.query(models.EventTypeDatabase, f.SinceSeconds, f.SessionID)
	out := events[:0]
	for _, ev := range events {
		d := ev.Database
		if f.Operation != "" && !strings.EqualFold(d.Operation, f.Operation) {
			continue
		}
		if f.Search != "" && !containsFold(d.Query, f.Search) {
			continue
		}
		if f.MinDuration > 0 && d.Duration < f.MinDuration {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// GetRenderProfiles returns render events, newest first. The component
// filter matches when any profile in the snapshot matches.
func (s *Store) GetRenderProfiles(f RenderFilter) []*models.Event {
	events := s.query(models.EventTypeRender, f.SinceSeconds, f.SessionID)
	out := events[:0]
	for _, ev := range events {
		if f.Component != "" && !anyProfileMatches(ev.Render.Profiles, f.Component) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// GetPerformanceMetrics returns performance events, newest first.
func (s *Store) GetPerformanceMetrics(f PerformanceFilter) []*models.Event {
	events := s.query(models.EventTypePerformance, f.SinceSeconds, f.SessionID)
	out := events[:0]
	for _, ev := range events {
		p := ev.Performance
		if f.MetricName != "" && !strings.EqualFold(p.MetricName, f.MetricName) {
			continue
		}
		if f.Rating != "" && p.Rating != f.Rating {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// GetStateChanges returns state events, newest first.
func (s *Store) GetStateChanges(f StateFilter) []*models.Event {
	events := s.query(models.EventTypeState, f.SinceSeconds, f.SessionID)
	out := events[:0]
	for _, ev := range events {
		if f.StoreID != "" && ev.State.StoreID != f.StoreID {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// GetDOMSnapshots returns dom_snapshot events, newest first.
func (s *Store) GetDOMSnapshots(f EventFilter) []*models.Event {
	return s.query(models.EventTypeDOMSnapshot, f.SinceSeconds, f.SessionID)
}

// GetReconResults returns recon_* events, newest first.
func (s *Store) GetReconResults(f EventFilter) []*models.Event {
	return s.query(models.EventTypeRecon, f.SinceSeconds, f.SessionID)
}

// GetSessionEvents returns session announcement events, newest first.
func (s *Store) GetSessionEvents(f EventFilter) []*models.Event {
	return s.query(models.EventTypeSession, f.SinceSeconds, f.SessionID)
}

// query snapshots one ring, applies the shared header filters, and flips
// to newest-first.
func (s *Store) query(tag models.EventType, sinceSeconds int, sessionID string) []*models.Event {
	events := s.snapshot(tag)
	if sinceSeconds > 0 {
		events = filterSince(events, s.cutoff(sinceSeconds))
	}
	if sessionID != "" {
		kept := events[:0:0]
		for _, ev := range events {
			if ev.SessionID == sessionID {
				kept = append(kept, ev)
			}
		}
		events = kept
	}
	return reverse(events)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func anyProfileMatches(profiles []models.RenderProfile, component string) bool {
	for _, p := range profiles {
		if containsFold(p.ComponentName, component) {
			return true
		}
	}
	return false
}
