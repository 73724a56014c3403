package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spyglass-dev/spyglass/pkg/models"
)

// DefaultRingCapacity is the per-type ring size when none is configured.
const DefaultRingCapacity = 10000

// Store is the bounded in-memory event log. It owns one ring per canonical
// event tag, guarded by a single mutex. Ingestion takes the lock for one
// O(1) append; queries copy the relevant ring slice under the lock and
// filter after releasing it.
type Store struct {
	mu       sync.Mutex
	capacity int
	rings    map[models.EventType]*Ring[*models.Event]
	ids      map[models.EventType]map[string]struct{}

	now func() time.Time // injectable for tests
}

// New creates a store with the given per-ring capacity. capacity <= 0 uses
// DefaultRingCapacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	s := &Store{
		capacity: capacity,
		rings:    make(map[models.EventType]*Ring[*models.Event], len(models.CoreEventTypes)),
		ids:      make(map[models.EventType]map[string]struct{}, len(models.CoreEventTypes)),
		now:      time.Now,
	}
	for _, tag := range models.CoreEventTypes {
		s.rings[tag] = NewRing[*models.Event](capacity)
		s.ids[tag] = make(map[string]struct{})
	}
	return s
}

// Add classifies an event by tag and appends it to the matching ring.
// Duplicate eventIds within a ring are silently deduplicated. Events with
// an unknown tag or missing header fields are rejected with
// models.ErrInvalidEvent.
func (s *Store) Add(ev *models.Event) error {
	if ev == nil || ev.EventID == "" || ev.SessionID == "" || ev.Timestamp <= 0 {
		return fmt.Errorf("%w: missing header fields", models.ErrInvalidEvent)
	}
	tag := ev.CanonicalTag()

	s.mu.Lock()
	defer s.mu.Unlock()

	ring, ok := s.rings[tag]
	if !ok {
		return fmt.Errorf("%w: unknown tag %q", models.ErrInvalidEvent, ev.Type)
	}
	if _, dup := s.ids[tag][ev.EventID]; dup {
		return nil
	}
	evicted, wasEvicted := ring.Append(ev)
	s.ids[tag][ev.EventID] = struct{}{}
	if wasEvicted {
		delete(s.ids[tag], evicted.EventID)
	}
	return nil
}

// snapshot copies one ring's retained events (insertion order) under lock.
func (s *Store) snapshot(tag models.EventType) []*models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ring, ok := s.rings[tag]; ok {
		return ring.Items()
	}
	return nil
}

// EventCount returns the total number of retained events across all rings.
func (s *Store) EventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, r := range s.rings {
		total += r.Len()
	}
	return total
}

// CountsByTag returns the retained event count per canonical tag.
func (s *Store) CountsByTag() map[models.EventType]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[models.EventType]int, len(s.rings))
	for tag, r := range s.rings {
		out[tag] = r.Len()
	}
	return out
}

// EventCountBySession returns the retained event count per session id.
// Derived on read; never pre-rolled.
func (s *Store) EventCountBySession() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int)
	for _, r := range s.rings {
		for _, ev := range r.Items() {
			out[ev.SessionID]++
		}
	}
	return out
}

// AllEvents returns every retained event across all rings, sorted ascending
// by timestamp (ties keep per-ring insertion order).
func (s *Store) AllEvents() []*models.Event {
	return s.GetEventTimeline(TimelineFilter{})
}

// GetEventTimeline merges the requested rings into a single stream sorted
// ascending by timestamp. An empty type set means all rings. The merge is a
// consistent snapshot of each ring individually, not across rings.
func (s *Store) GetEventTimeline(f TimelineFilter) []*models.Event {
	tags := f.Types
	if len(tags) == 0 {
		tags = models.CoreEventTypes
	}

	s.mu.Lock()
	var merged []*models.Event
	for _, tag := range tags {
		if ring, ok := s.rings[tag]; ok {
			merged = append(merged, ring.Items()...)
		}
	}
	s.mu.Unlock()

	if f.SinceSeconds > 0 {
		merged = filterSince(merged, s.cutoff(f.SinceSeconds))
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}

// Clear resets every ring and the dedup index.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tag, r := range s.rings {
		r.Reset()
		s.ids[tag] = make(map[string]struct{})
	}
}

// cutoff converts a sinceSeconds filter into a millisecond timestamp bound.
func (s *Store) cutoff(sinceSeconds int) int64 {
	return s.now().UnixMilli() - int64(sinceSeconds)*1000
}

// filterSince retains events with timestamp >= cutoff, preserving order.
func filterSince(events []*models.Event, cutoff int64) []*models.Event {
	out := events[:0:0]
	for _, ev := range events {
		if ev.Timestamp >= cutoff {
			out = append(out, ev)
		}
	}
	return out
}

// reverse returns a newest-first copy of an insertion-ordered slice.
func reverse(events []*models.Event) []*models.Event {
	out := make([]*models.Event, len(events))
	for i, ev := range events {
		out[len(events)-1-i] = ev
	}
	return out
}
