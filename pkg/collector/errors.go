package collector

import "errors"

// Command round-trip errors surfaced to callers of SendCommand. All are
// recoverable at the caller; none terminate the session socket.
var (
	// ErrNoSession means the target session is unknown or disconnected.
	ErrNoSession = errors.New("no session")

	// ErrTimeout means no matching reply arrived within the deadline.
	// A late reply is discarded.
	ErrTimeout = errors.New("command timed out")

	// ErrDisconnected means the session socket closed before the reply.
	ErrDisconnected = errors.New("session disconnected")

	// ErrShutdown means the server is stopping; all pending waiters
	// resolve with this error.
	ErrShutdown = errors.New("server shutting down")
)
