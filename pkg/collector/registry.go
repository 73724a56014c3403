package collector

import (
	"sort"
	"sync"
	"time"

	"github.com/spyglass-dev/spyglass/pkg/models"
)

// Transport is the outbound half of one SDK connection. Enqueue is
// non-blocking: it reports false when the connection is closed or the frame
// was dropped for backpressure. Command frames are never dropped.
type Transport interface {
	Enqueue(frame []byte, command bool) bool
	Close()
}

// Registry maps session ids to their transport handles and session records.
// The registry owns transports: connection goroutines register on the first
// session frame and call MarkDisconnected from their deferred cleanup, so no
// back-pointer from transport to server is needed.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	now      func() time.Time
}

type sessionEntry struct {
	rec       models.Session
	transport Transport
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*sessionEntry),
		now:      time.Now,
	}
}

// Register creates or updates a session record and installs its transport.
// Re-registering an existing session id replaces the transport and flips the
// record back to connected; history in the store is untouched.
func (r *Registry) Register(sessionID string, body *models.SessionBody, t Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UnixMilli()
	entry, ok := r.sessions[sessionID]
	if !ok {
		entry = &sessionEntry{}
		r.sessions[sessionID] = entry
	}
	if entry.transport != nil && entry.transport != t {
		// Replaced by a reconnect; release the stale handle.
		entry.transport.Close()
	}
	entry.transport = t

	entry.rec.SessionID = sessionID
	entry.rec.IsConnected = true
	entry.rec.LastSeenAt = now
	if body != nil {
		if body.AppName != "" {
			entry.rec.AppName = body.AppName
		}
		if body.SDKVersion != "" {
			entry.rec.SDKVersion = body.SDKVersion
		}
		if body.ConnectedAt > 0 {
			entry.rec.ConnectedAt = body.ConnectedAt
		}
	}
	if entry.rec.ConnectedAt == 0 {
		entry.rec.ConnectedAt = now
	}
}

// Touch updates a session's last-seen time.
func (r *Registry) Touch(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.sessions[sessionID]; ok {
		entry.rec.LastSeenAt = r.now().UnixMilli()
	}
}

// MarkDisconnected flips a session to disconnected and drops its transport,
// but only when the given transport is still the current one. A reconnect
// may already have replaced it, in which case the stale close is a no-op.
func (r *Registry) MarkDisconnected(sessionID string, t Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sessionID]
	if !ok || entry.transport != t {
		return
	}
	entry.transport = nil
	entry.rec.IsConnected = false
	entry.rec.LastSeenAt = r.now().UnixMilli()
}

// Lookup returns the transport for a connected session.
func (r *Registry) Lookup(sessionID string) (Transport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sessionID]
	if !ok || entry.transport == nil {
		return nil, false
	}
	return entry.transport, true
}

// FirstConnected returns the id of the earliest-connected live session.
// Used as the default command target when a tool names no session.
func (r *Registry) FirstConnected() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var bestID string
	var bestAt int64
	for id, entry := range r.sessions {
		if entry.transport == nil {
			continue
		}
		if bestID == "" || entry.rec.ConnectedAt < bestAt {
			bestID, bestAt = id, entry.rec.ConnectedAt
		}
	}
	return bestID, bestID != ""
}

// All returns a snapshot of every session record, connected or not, sorted
// by connect time.
func (r *Registry) All() []models.Session {
	r.mu.Lock()
	out := make([]models.Session, 0, len(r.sessions))
	for _, entry := range r.sessions {
		out = append(out, entry.rec)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt < out[j].ConnectedAt })
	return out
}

// Transports returns the live transport handles, for shutdown.
func (r *Registry) Transports() []Transport {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Transport, 0, len(r.sessions))
	for _, entry := range r.sessions {
		if entry.transport != nil {
			out = append(out, entry.transport)
		}
	}
	return out
}

// Clear removes session records but keeps live transports registered so
// connected SDKs keep working; their records are re-created with current
// metadata.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now().UnixMilli()
	for id, entry := range r.sessions {
		if entry.transport == nil {
			delete(r.sessions, id)
			continue
		}
		entry.rec = models.Session{
			SessionID:   id,
			AppName:     entry.rec.AppName,
			SDKVersion:  entry.rec.SDKVersion,
			ConnectedAt: now,
			LastSeenAt:  now,
			IsConnected: true,
		}
	}
}
