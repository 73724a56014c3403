package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addSubscriber(h *Hub, id string, queueCap int) *subscriber {
	s := &subscriber{id: id, frames: make(chan []byte, queueCap), cancel: func() {}}
	h.mu.Lock()
	h.subs[id] = s
	h.mu.Unlock()
	return s
}

func TestHub_PublishFansOut(t *testing.T) {
	h := NewHub(4, time.Second)
	a := addSubscriber(h, "a", 4)
	b := addSubscriber(h, "b", 4)

	h.Publish([]byte("frame-1"))
	h.Publish([]byte("frame-2"))

	assert.Equal(t, "frame-1", string(<-a.frames))
	assert.Equal(t, "frame-2", string(<-a.frames))
	assert.Equal(t, "frame-1", string(<-b.frames))
	assert.Equal(t, 2, h.SubscriberCount())
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	h := NewHub(4, time.Second)
	slow := addSubscriber(h, "slow", 1)
	fast := addSubscriber(h, "fast", 4)

	h.Publish([]byte("frame-1"))
	h.Publish([]byte("frame-2")) // overflows the slow subscriber

	assert.Equal(t, 1, h.SubscriberCount())
	assert.Equal(t, int64(1), h.DroppedSubscribers())

	// Later publishes reach only the survivor.
	h.Publish([]byte("frame-3"))
	require.Len(t, fast.frames, 3)
	assert.Len(t, slow.frames, 1)
}

func TestHub_CloseAll(t *testing.T) {
	h := NewHub(4, time.Second)
	cancelled := false
	s := &subscriber{id: "a", frames: make(chan []byte, 1), cancel: func() { cancelled = true }}
	h.mu.Lock()
	h.subs[s.id] = s
	h.mu.Unlock()

	h.CloseAll()

	assert.True(t, cancelled)
	assert.Equal(t, 0, h.SubscriberCount())
}
