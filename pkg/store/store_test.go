package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spyglass-dev/spyglass/pkg/models"
)

func consoleEvent(id, sessionID string, ts int64, level, message string) *models.Event {
	return &models.Event{
		EventID:   id,
		SessionID: sessionID,
		Timestamp: ts,
		Type:      models.EventTypeConsole,
		Console:   &models.ConsoleBody{Level: level, Message: message},
	}
}

func networkEvent(id, sessionID string, ts int64, method, url string, status int, duration float64) *models.Event {
	return &models.Event{
		EventID:   id,
		SessionID: sessionID,
		Timestamp: ts,
		Type:      models.EventTypeNetwork,
		Network:   &models.NetworkBody{Method: method, URL: url, Status: status, Duration: duration},
	}
}

func TestStore_RingEviction(t *testing.T) {
	s := New(3)

	for i, id := range []string{"A", "B", "C", "D"} {
		require.NoError(t, s.Add(consoleEvent(id, "s1", int64(i+1), models.LevelLog, "m")))
	}

	events := s.AllEvents()
	require.Len(t, events, 3)
	assert.Equal(t, "B", events[0].EventID)
	assert.Equal(t, "C", events[1].EventID)
	assert.Equal(t, "D", events[2].EventID)
	assert.Equal(t, 3, s.EventCount())
}

func TestStore_RejectsInvalidEvents(t *testing.T) {
	s := New(10)

	tests := []struct {
		name string
		ev   *models.Event
	}{
		{"nil event", nil},
		{"missing event id", &models.Event{SessionID: "s1", Timestamp: 1, Type: models.EventTypeConsole}},
		{"missing session id", &models.Event{EventID: "e1", Timestamp: 1, Type: models.EventTypeConsole}},
		{"missing timestamp", &models.Event{EventID: "e1", SessionID: "s1", Type: models.EventTypeConsole}},
		{"unknown tag", &models.Event{EventID: "e1", SessionID: "s1", Timestamp: 1, Type: "telemetry"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, s.Add(tt.ev), models.ErrInvalidEvent)
		})
	}
	assert.Equal(t, 0, s.EventCount())
}

func TestStore_DeduplicatesByEventID(t *testing.T) {
	s := New(10)

	require.NoError(t, s.Add(consoleEvent("e1", "s1", 1, models.LevelLog, "first")))
	require.NoError(t, s.Add(consoleEvent("e1", "s1", 2, models.LevelLog, "duplicate")))

	events := s.AllEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "first", events[0].Console.Message)
}

func TestStore_DedupIndexFollowsEviction(t *testing.T) {
	s := New(2)

	require.NoError(t, s.Add(consoleEvent("e1", "s1", 1, models.LevelLog, "a")))
	require.NoError(t, s.Add(consoleEvent("e2", "s1", 2, models.LevelLog, "b")))
	require.NoError(t, s.Add(consoleEvent("e3", "s1", 3, models.LevelLog, "c"))) // evicts e1

	// e1 was evicted, so its id may be reused.
	require.NoError(t, s.Add(consoleEvent("e1", "s1", 4, models.LevelLog, "again")))

	events := s.AllEvents()
	require.Len(t, events, 2)
	assert.Equal(t, "e3", events[0].EventID)
	assert.Equal(t, "e1", events[1].EventID)
}

func TestStore_RingsAreIndependent(t *testing.T) {
	s := New(2)

	require.NoError(t, s.Add(consoleEvent("c1", "s1", 1, models.LevelLog, "m")))
	require.NoError(t, s.Add(consoleEvent("c2", "s1", 2, models.LevelLog, "m")))
	require.NoError(t, s.Add(consoleEvent("c3", "s1", 3, models.LevelLog, "m"))) // evicts c1
	require.NoError(t, s.Add(networkEvent("n1", "s1", 4, "GET", "/a", 200, 10)))

	counts := s.CountsByTag()
	assert.Equal(t, 2, counts[models.EventTypeConsole])
	assert.Equal(t, 1, counts[models.EventTypeNetwork])
	assert.Equal(t, 3, s.EventCount())
}

func TestStore_TimelineSortedAscending(t *testing.T) {
	s := New(100)

	// Interleave types with out-of-order timestamps.
	require.NoError(t, s.Add(consoleEvent("c1", "s1", 30, models.LevelLog, "m")))
	require.NoError(t, s.Add(networkEvent("n1", "s1", 10, "GET", "/a", 200, 5)))
	require.NoError(t, s.Add(consoleEvent("c2", "s1", 20, models.LevelLog, "m")))
	require.NoError(t, s.Add(networkEvent("n2", "s2", 40, "GET", "/b", 200, 5)))

	events := s.GetEventTimeline(TimelineFilter{})
	require.Len(t, events, 4)
	for i := 1; i < len(events); i++ {
		assert.LessOrEqual(t, events[i-1].Timestamp, events[i].Timestamp)
	}
	assert.Equal(t, "n1", events[0].EventID)
	assert.Equal(t, "n2", events[3].EventID)
}

func TestStore_TimelineTypeFilter(t *testing.T) {
	s := New(100)
	require.NoError(t, s.Add(consoleEvent("c1", "s1", 1, models.LevelLog, "m")))
	require.NoError(t, s.Add(networkEvent("n1", "s1", 2, "GET", "/a", 200, 5)))

	events := s.GetEventTimeline(TimelineFilter{Types: []models.EventType{models.EventTypeNetwork}})
	require.Len(t, events, 1)
	assert.Equal(t, "n1", events[0].EventID)
}

func TestStore_SinceSecondsFilter(t *testing.T) {
	s := New(100)
	now := time.UnixMilli(100_000)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Add(consoleEvent("old", "s1", 10_000, models.LevelLog, "m")))
	require.NoError(t, s.Add(consoleEvent("new", "s1", 95_000, models.LevelLog, "m")))

	events := s.GetConsoleMessages(ConsoleFilter{SinceSeconds: 30})
	require.Len(t, events, 1)
	assert.Equal(t, "new", events[0].EventID)
}

func TestStore_EventCountBySession(t *testing.T) {
	s := New(100)
	require.NoError(t, s.Add(consoleEvent("c1", "s1", 1, models.LevelLog, "m")))
	require.NoError(t, s.Add(consoleEvent("c2", "s1", 2, models.LevelLog, "m")))
	require.NoError(t, s.Add(networkEvent("n1", "s2", 3, "GET", "/a", 200, 5)))

	counts := s.EventCountBySession()
	assert.Equal(t, 2, counts["s1"])
	assert.Equal(t, 1, counts["s2"])
}

func TestStore_Clear(t *testing.T) {
	s := New(100)
	require.NoError(t, s.Add(consoleEvent("c1", "s1", 1, models.LevelLog, "m")))
	s.Clear()

	assert.Equal(t, 0, s.EventCount())

	// Cleared ids may be reused.
	require.NoError(t, s.Add(consoleEvent("c1", "s1", 2, models.LevelLog, "m")))
	assert.Equal(t, 1, s.EventCount())
}

func TestStore_TotalEqualsSumOfRings(t *testing.T) {
	s := New(5)
	for i := 0; i < 20; i++ {
		require.NoError(t, s.Add(consoleEvent(fmt.Sprintf("c%d", i), "s1", int64(i+1), models.LevelLog, "m")))
		require.NoError(t, s.Add(networkEvent(fmt.Sprintf("n%d", i), "s1", int64(i+1), "GET", "/a", 200, 1)))
	}

	sum := 0
	for _, n := range s.CountsByTag() {
		sum += n
	}
	assert.Equal(t, sum, s.EventCount())
	assert.Len(t, s.AllEvents(), sum)
}
