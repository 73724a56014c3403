package collector

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/spyglass-dev/spyglass/pkg/models"
)

// Per-connection bounds.
const (
	// DefaultSendQueueCap bounds the outbound writer queue. On overflow
	// the oldest non-command frame is dropped; command frames never are.
	DefaultSendQueueCap = 256

	// DefaultPreSessionBufferCap bounds how many event frames a socket may
	// send before its session frame; they are flushed once the session is
	// announced.
	DefaultPreSessionBufferCap = 64

	// DefaultWriteTimeout guards individual socket writes.
	DefaultWriteTimeout = 10 * time.Second
)

type outFrame struct {
	data    []byte
	command bool
}

// sdkConn is the server side of one SDK socket. The read loop runs on the
// goroutine that called HandleSDKConnection; outbound writes are serialized
// by a single writer goroutine fed from a bounded queue.
type sdkConn struct {
	coll   *Collector
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	queue  []outFrame
	closed bool
	signal chan struct{}

	sessionID string          // set once the session frame arrives
	prebuf    []*models.Event // events received before the session frame
}

// Enqueue implements Transport. It never blocks: when the queue is at
// capacity, the oldest non-command frame is dropped to make room; command
// frames are always admitted (the queue may transiently exceed its cap when
// it is full of commands). Returns false when the frame was not admitted.
func (s *sdkConn) Enqueue(frame []byte, command bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if len(s.queue) >= s.coll.cfg.SendQueueCap {
		dropped := false
		for i, f := range s.queue {
			if !f.command {
				s.queue = append(s.queue[:i], s.queue[i+1:]...)
				s.coll.droppedOutbound.Add(1)
				dropped = true
				break
			}
		}
		if !dropped && !command {
			s.coll.droppedOutbound.Add(1)
			return false
		}
	}
	s.queue = append(s.queue, outFrame{data: frame, command: command})
	select {
	case s.signal <- struct{}{}:
	default:
	}
	return true
}

// Close implements Transport. It cancels the connection context, which
// unblocks both the read loop and the writer.
func (s *sdkConn) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

// writeLoop drains the send queue onto the socket, one frame at a time.
func (s *sdkConn) writeLoop() {
	for {
		s.mu.Lock()
		var next *outFrame
		if len(s.queue) > 0 {
			f := s.queue[0]
			s.queue = s.queue[1:]
			next = &f
		}
		s.mu.Unlock()

		if next == nil {
			select {
			case <-s.signal:
				continue
			case <-s.ctx.Done():
				return
			}
		}

		writeCtx, cancel := context.WithTimeout(s.ctx, s.coll.cfg.WriteTimeout)
		err := s.conn.Write(writeCtx, websocket.MessageText, next.data)
		cancel()
		if err != nil {
			s.cancel()
			return
		}
	}
}

// HandleSDKConnection manages the lifecycle of one SDK socket. Called by
// the WebSocket HTTP handler after upgrade; blocks until the socket closes.
func (c *Collector) HandleSDKConnection(parentCtx context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parentCtx)
	s := &sdkConn{
		coll:   c,
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
		signal: make(chan struct{}, 1),
	}
	go s.writeLoop()

	defer func() {
		s.Close()
		if s.sessionID != "" {
			c.registry.MarkDisconnected(s.sessionID, s)
			c.router.FailSession(s.sessionID, ErrDisconnected)
			slog.Info("SDK session disconnected", "session_id", s.sessionID)
		}
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		c.handleFrame(s, data)
	}
}

// handleFrame parses one inbound frame and routes it. Malformed frames are
// counted and dropped; they never terminate the connection — a broken
// observer must not impact the observed program.
func (c *Collector) handleFrame(s *sdkConn, data []byte) {
	if models.PeekFrameType(data) {
		var reply models.CommandReply
		if err := json.Unmarshal(data, &reply); err != nil || reply.RequestID == "" {
			c.invalidFrames.Add(1)
			slog.Debug("Invalid command reply frame", "error", err)
			return
		}
		c.router.Resolve(&reply)
		return
	}

	ev, err := models.DecodeEvent(data)
	if err != nil {
		if errors.Is(err, models.ErrInvalidEvent) {
			c.invalidEvents.Add(1)
		} else {
			c.invalidFrames.Add(1)
		}
		slog.Debug("Dropping undecodable frame", "error", err)
		return
	}

	if ev.Type == models.EventTypeSession {
		c.registry.Register(ev.SessionID, ev.Session, s)
		first := s.sessionID == ""
		s.sessionID = ev.SessionID
		c.ingest(ev, data)
		if first {
			slog.Info("SDK session connected",
				"session_id", ev.SessionID, "app", ev.Session.AppName)
		}
		for _, buffered := range s.prebuf {
			c.ingestEvent(buffered)
		}
		s.prebuf = nil
		return
	}

	if s.sessionID == "" {
		// First-frame contract: hold events until the session announces
		// itself, bounded so a misbehaving producer cannot grow memory.
		if len(s.prebuf) >= c.cfg.PreSessionBufferCap {
			s.prebuf = s.prebuf[1:]
		}
		s.prebuf = append(s.prebuf, ev)
		return
	}

	c.ingest(ev, data)
	c.registry.Touch(ev.SessionID)
}

// ingest stores a decoded event and re-emits the original frame to
// broadcast subscribers.
func (c *Collector) ingest(ev *models.Event, raw []byte) {
	if err := c.store.Add(ev); err != nil {
		c.invalidEvents.Add(1)
		slog.Debug("Store rejected event", "event_id", ev.EventID, "error", err)
		return
	}
	c.hub.Publish(raw)
}

// ingestEvent stores an event that has no original frame bytes handy
// (pre-session flushes, synthesized command-reply events), encoding it for
// broadcast.
func (c *Collector) ingestEvent(ev *models.Event) {
	raw, err := models.EncodeEvent(ev)
	if err != nil {
		c.invalidEvents.Add(1)
		return
	}
	c.ingest(ev, raw)
}
