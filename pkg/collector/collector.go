// Package collector implements the event-pipeline substrate: the session
// registry, the session-multiplexed SDK socket handling, the broadcast
// fan-out for UI consumers, and the command/reply round-trip router.
package collector

import (
	"sync/atomic"
	"time"

	"github.com/spyglass-dev/spyglass/pkg/models"
	"github.com/spyglass-dev/spyglass/pkg/store"
)

// Config bounds the collector's per-connection resources.
type Config struct {
	SendQueueCap        int
	BroadcastQueueCap   int
	PreSessionBufferCap int
	WriteTimeout        time.Duration
	CommandTimeout      time.Duration
}

// DefaultConfig returns the built-in collector bounds.
func DefaultConfig() Config {
	return Config{
		SendQueueCap:        DefaultSendQueueCap,
		BroadcastQueueCap:   DefaultBroadcastQueueCap,
		PreSessionBufferCap: DefaultPreSessionBufferCap,
		WriteTimeout:        DefaultWriteTimeout,
		CommandTimeout:      DefaultCommandTimeout,
	}
}

// Collector ties the store, the session registry, the command router, and
// the broadcast hub together behind the two socket endpoints.
type Collector struct {
	cfg      Config
	store    *store.Store
	registry *Registry
	router   *Router
	hub      *Hub

	invalidFrames   atomic.Int64
	invalidEvents   atomic.Int64
	droppedOutbound atomic.Int64
}

// New creates a collector over the given store.
func New(st *store.Store, cfg Config) *Collector {
	def := DefaultConfig()
	if cfg.SendQueueCap <= 0 {
		cfg.SendQueueCap = def.SendQueueCap
	}
	if cfg.BroadcastQueueCap <= 0 {
		cfg.BroadcastQueueCap = def.BroadcastQueueCap
	}
	if cfg.PreSessionBufferCap <= 0 {
		cfg.PreSessionBufferCap = def.PreSessionBufferCap
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = def.CommandTimeout
	}

	registry := NewRegistry()
	return &Collector{
		cfg:      cfg,
		store:    st,
		registry: registry,
		router:   NewRouter(registry),
		hub:      NewHub(cfg.BroadcastQueueCap, cfg.WriteTimeout),
	}
}

// Store returns the underlying event store.
func (c *Collector) Store() *store.Store { return c.store }

// Registry returns the session registry.
func (c *Collector) Registry() *Registry { return c.registry }

// Router returns the command router.
func (c *Collector) Router() *Router { return c.router }

// Hub returns the broadcast hub.
func (c *Collector) Hub() *Hub { return c.hub }

// GetSessionInfo returns the session registry snapshot joined with
// per-session retained event counts.
func (c *Collector) GetSessionInfo() []models.SessionInfo {
	counts := c.store.EventCountBySession()
	sessions := c.registry.All()
	out := make([]models.SessionInfo, len(sessions))
	for i, s := range sessions {
		out[i] = models.SessionInfo{Session: s, EventCount: counts[s.SessionID]}
	}
	return out
}

// Clear resets the event store and the session records. Live SDK sockets
// stay connected.
func (c *Collector) Clear() {
	c.store.Clear()
	c.registry.Clear()
}

// Stats is a point-in-time snapshot of collector health counters.
type Stats struct {
	EventCounts        map[models.EventType]int `json:"eventCounts"`
	TotalEvents        int                      `json:"totalEvents"`
	Sessions           int                      `json:"sessions"`
	ConnectedSessions  int                      `json:"connectedSessions"`
	Subscribers        int                      `json:"subscribers"`
	InvalidFrames      int64                    `json:"invalidFrames"`
	InvalidEvents      int64                    `json:"invalidEvents"`
	DroppedOutbound    int64                    `json:"droppedOutbound"`
	DroppedSubscribers int64                    `json:"droppedSubscribers"`
	PendingCommands    int                      `json:"pendingCommands"`
}

// CollectStats snapshots the health counters.
func (c *Collector) CollectStats() Stats {
	sessions := c.registry.All()
	connected := 0
	for _, s := range sessions {
		if s.IsConnected {
			connected++
		}
	}
	counts := c.store.CountsByTag()
	total := 0
	for _, n := range counts {
		total += n
	}
	return Stats{
		EventCounts:        counts,
		TotalEvents:        total,
		Sessions:           len(sessions),
		ConnectedSessions:  connected,
		Subscribers:        c.hub.SubscriberCount(),
		InvalidFrames:      c.invalidFrames.Load(),
		InvalidEvents:      c.invalidEvents.Load(),
		DroppedOutbound:    c.droppedOutbound.Load(),
		DroppedSubscribers: c.hub.DroppedSubscribers(),
		PendingCommands:    c.router.PendingCount(),
	}
}

// Shutdown fails all pending commands, disconnects broadcast subscribers,
// and closes every SDK transport.
func (c *Collector) Shutdown() {
	c.router.Shutdown()
	c.hub.CloseAll()
	for _, t := range c.registry.Transports() {
		t.Close()
	}
}
