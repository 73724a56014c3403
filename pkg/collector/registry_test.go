package collector

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spyglass-dev/spyglass/pkg/models"
)

// fakeTransport records enqueued frames for assertions.
type fakeTransport struct {
	mu       sync.Mutex
	frames   [][]byte
	commands []bool
	closed   bool
	reject   bool
}

func (f *fakeTransport) Enqueue(frame []byte, command bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject || f.closed {
		return false
	}
	f.frames = append(f.frames, frame)
	f.commands = append(f.commands, command)
	return true
}

func (f *fakeTransport) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.frames...)
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	tr := &fakeTransport{}

	r.Register("s1", &models.SessionBody{AppName: "shop", SDKVersion: "1.2.0"}, tr)

	got, ok := r.Lookup("s1")
	require.True(t, ok)
	assert.Same(t, tr, got.(*fakeTransport))

	sessions := r.All()
	require.Len(t, sessions, 1)
	assert.Equal(t, "shop", sessions[0].AppName)
	assert.Equal(t, "1.2.0", sessions[0].SDKVersion)
	assert.True(t, sessions[0].IsConnected)
}

func TestRegistry_ReconnectReplacesTransport(t *testing.T) {
	r := NewRegistry()
	old := &fakeTransport{}
	r.Register("s1", &models.SessionBody{AppName: "shop"}, old)

	replacement := &fakeTransport{}
	r.Register("s1", &models.SessionBody{AppName: "shop"}, replacement)

	assert.True(t, old.isClosed())
	got, ok := r.Lookup("s1")
	require.True(t, ok)
	assert.Same(t, replacement, got.(*fakeTransport))

	// The stale connection's deferred cleanup must not clobber the new one.
	r.MarkDisconnected("s1", old)
	_, ok = r.Lookup("s1")
	assert.True(t, ok)

	sessions := r.All()
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].IsConnected)
}

func TestRegistry_MarkDisconnected(t *testing.T) {
	r := NewRegistry()
	tr := &fakeTransport{}
	r.Register("s1", nil, tr)

	r.MarkDisconnected("s1", tr)

	_, ok := r.Lookup("s1")
	assert.False(t, ok)

	// Record survives disconnect.
	sessions := r.All()
	require.Len(t, sessions, 1)
	assert.False(t, sessions[0].IsConnected)
}

func TestRegistry_FirstConnected(t *testing.T) {
	r := NewRegistry()
	_, ok := r.FirstConnected()
	assert.False(t, ok)

	r.Register("late", &models.SessionBody{ConnectedAt: 200}, &fakeTransport{})
	r.Register("early", &models.SessionBody{ConnectedAt: 100}, &fakeTransport{})
	r.Register("gone", &models.SessionBody{ConnectedAt: 50}, &fakeTransport{})
	tr, _ := r.Lookup("gone")
	r.MarkDisconnected("gone", tr)

	id, ok := r.FirstConnected()
	require.True(t, ok)
	assert.Equal(t, "early", id)
}

func TestRegistry_Touch(t *testing.T) {
	r := NewRegistry()
	base := time.UnixMilli(1000)
	r.now = func() time.Time { return base }
	r.Register("s1", nil, &fakeTransport{})

	r.now = func() time.Time { return base.Add(5 * time.Second) }
	r.Touch("s1")
	r.Touch("unknown") // no-op

	sessions := r.All()
	require.Len(t, sessions, 1)
	assert.Equal(t, base.Add(5*time.Second).UnixMilli(), sessions[0].LastSeenAt)
}

func TestRegistry_ClearKeepsLiveSessions(t *testing.T) {
	r := NewRegistry()
	live := &fakeTransport{}
	r.Register("live", &models.SessionBody{AppName: "shop"}, live)
	dead := &fakeTransport{}
	r.Register("dead", nil, dead)
	r.MarkDisconnected("dead", dead)

	r.Clear()

	sessions := r.All()
	require.Len(t, sessions, 1)
	assert.Equal(t, "live", sessions[0].SessionID)
	assert.Equal(t, "shop", sessions[0].AppName)
	assert.True(t, sessions[0].IsConnected)

	_, ok := r.Lookup("live")
	assert.True(t, ok)
}

func TestRegistry_Transports(t *testing.T) {
	r := NewRegistry()
	a := &fakeTransport{}
	b := &fakeTransport{}
	r.Register("a", nil, a)
	r.Register("b", nil, b)
	r.MarkDisconnected("b", b)

	transports := r.Transports()
	require.Len(t, transports, 1)
	assert.Same(t, a, transports[0].(*fakeTransport))
}
