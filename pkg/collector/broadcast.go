package collector

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// DefaultBroadcastQueueCap bounds each subscriber's pending-frame queue.
// A subscriber that falls this far behind is dropped.
const DefaultBroadcastQueueCap = 1024

// Hub fans stored events out to UI subscribers on the /events endpoint.
// Subscribers receive every event published after registration, with no
// history replay. Publishing never blocks: a subscriber whose queue
// overflows is disconnected.
type Hub struct {
	queueCap     int
	writeTimeout time.Duration

	mu   sync.Mutex
	subs map[string]*subscriber

	dropped atomic.Int64 // subscribers dropped for backpressure
}

type subscriber struct {
	id     string
	frames chan []byte
	cancel context.CancelFunc
}

// NewHub creates a broadcast hub. queueCap <= 0 uses
// DefaultBroadcastQueueCap.
func NewHub(queueCap int, writeTimeout time.Duration) *Hub {
	if queueCap <= 0 {
		queueCap = DefaultBroadcastQueueCap
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Hub{
		queueCap:     queueCap,
		writeTimeout: writeTimeout,
		subs:         make(map[string]*subscriber),
	}
}

// Publish enqueues a frame to every subscriber. Subscribers whose queue is
// full are dropped so slow UIs cannot stall ingestion.
func (h *Hub) Publish(frame []byte) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		select {
		case s.frames <- frame:
		default:
			slog.Warn("Dropping slow broadcast subscriber", "subscriber_id", s.id)
			h.dropped.Add(1)
			h.unregister(s)
		}
	}
}

// HandleConnection serves one broadcast subscriber. Blocks until the
// subscriber disconnects, overflows its queue, or ctx is cancelled.
func (h *Hub) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parentCtx)
	s := &subscriber{
		id:     uuid.New().String(),
		frames: make(chan []byte, h.queueCap),
		cancel: cancel,
	}

	h.mu.Lock()
	h.subs[s.id] = s
	h.mu.Unlock()
	defer func() {
		h.unregister(s)
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	// Broadcast is one-way; drain inbound frames only to detect close.
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case frame := <-s.frames:
			writeCtx, writeCancel := context.WithTimeout(ctx, h.writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, frame)
			writeCancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// SubscriberCount returns the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// DroppedSubscribers returns how many subscribers were dropped for
// backpressure since start.
func (h *Hub) DroppedSubscribers() int64 {
	return h.dropped.Load()
}

// CloseAll disconnects every subscriber. Used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.subs = make(map[string]*subscriber)
	h.mu.Unlock()

	for _, s := range subs {
		s.cancel()
	}
}

func (h *Hub) unregister(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s.id)
	h.mu.Unlock()
	s.cancel()
}
