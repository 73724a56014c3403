package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spyglass-dev/spyglass/pkg/models"
)

// DefaultCommandTimeout bounds a command round-trip when the caller passes
// no explicit timeout.
const DefaultCommandTimeout = 10 * time.Second

// Router correlates outbound command frames with inbound command_reply
// frames by requestId. Each pending command is a one-shot waiter: the race
// between reply arrival, timer expiry, caller cancellation, session
// disconnect, and server shutdown resolves exactly once; later resolutions
// are no-ops and late replies are discarded.
type Router struct {
	registry *Registry

	mu      sync.Mutex
	pending map[string]*waiter
	down    bool // set by Shutdown; rejects new commands
}

type waiter struct {
	sessionID string
	once      sync.Once
	done      chan result
}

type result struct {
	data json.RawMessage
	err  error
}

func (w *waiter) resolve(res result) {
	w.once.Do(func() { w.done <- res })
}

// NewRouter creates a command router over the given registry.
func NewRouter(registry *Registry) *Router {
	return &Router{
		registry: registry,
		pending:  make(map[string]*waiter),
	}
}

// SendCommand writes a command frame to the session's socket and suspends
// the caller until the correlated reply, the timeout, caller cancellation,
// session disconnect, or server shutdown. timeout <= 0 uses
// DefaultCommandTimeout. An empty RequestID is filled with a fresh UUID.
func (r *Router) SendCommand(ctx context.Context, sessionID string, frame models.CommandFrame, timeout time.Duration) (json.RawMessage, error) {
	transport, ok := r.registry.Lookup(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSession, sessionID)
	}
	if frame.RequestID == "" {
		frame.RequestID = uuid.New().String()
	}
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}

	w := &waiter{sessionID: sessionID, done: make(chan result, 1)}

	r.mu.Lock()
	if r.down {
		r.mu.Unlock()
		return nil, ErrShutdown
	}
	if _, exists := r.pending[frame.RequestID]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("duplicate requestId %q", frame.RequestID)
	}
	r.pending[frame.RequestID] = w
	r.mu.Unlock()

	data, err := json.Marshal(frame)
	if err != nil {
		r.remove(frame.RequestID)
		return nil, fmt.Errorf("marshal command frame: %w", err)
	}
	if !transport.Enqueue(data, true) {
		r.remove(frame.RequestID)
		return nil, fmt.Errorf("%w: %s", ErrDisconnected, sessionID)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-w.done:
		r.remove(frame.RequestID)
		return res.data, res.err
	case <-timer.C:
		r.remove(frame.RequestID)
		return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	case <-ctx.Done():
		r.remove(frame.RequestID)
		return nil, ctx.Err()
	}
}

// Resolve delivers an inbound command_reply to its waiter. Unknown request
// ids are discarded (the waiter timed out, was cancelled, or never existed).
func (r *Router) Resolve(reply *models.CommandReply) {
	r.mu.Lock()
	w, ok := r.pending[reply.RequestID]
	r.mu.Unlock()
	if !ok {
		slog.Debug("Discarding late or unknown command reply", "request_id", reply.RequestID)
		return
	}
	if reply.Error != "" {
		w.resolve(result{err: fmt.Errorf("sdk error: %s", reply.Error)})
		return
	}
	w.resolve(result{data: reply.Data})
}

// FailSession resolves every pending waiter for a session with the given
// error. Called by the connection goroutine on disconnect.
func (r *Router) FailSession(sessionID string, err error) {
	r.mu.Lock()
	var failed []*waiter
	for _, w := range r.pending {
		if w.sessionID == sessionID {
			failed = append(failed, w)
		}
	}
	r.mu.Unlock()

	for _, w := range failed {
		w.resolve(result{err: err})
	}
}

// Shutdown rejects new commands and resolves every pending waiter with
// ErrShutdown.
func (r *Router) Shutdown() {
	r.mu.Lock()
	r.down = true
	all := make([]*waiter, 0, len(r.pending))
	for _, w := range r.pending {
		all = append(all, w)
	}
	r.mu.Unlock()

	for _, w := range all {
		w.resolve(result{err: ErrShutdown})
	}
}

// PendingCount reports the number of in-flight commands. Used by tests to
// assert the pending table drains.
func (r *Router) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Router) remove(requestID string) {
	r.mu.Lock()
	delete(r.pending, requestID)
	r.mu.Unlock()
}
