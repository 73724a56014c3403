// Package api exposes the collector over HTTP: the two WebSocket upgrade
// endpoints, a small REST surface for the UI, and the MCP mount for agents.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	echo "github.com/labstack/echo/v5"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/spyglass-dev/spyglass/pkg/collector"
	"github.com/spyglass-dev/spyglass/pkg/config"
	"github.com/spyglass-dev/spyglass/pkg/tools"
)

// ErrPortInUse is returned by Start when every candidate port is taken.
var ErrPortInUse = errors.New("all candidate ports in use")

// Server is the HTTP server wrapping the collector.
type Server struct {
	cfg  config.ServerConfig
	coll *collector.Collector

	echo       *echo.Echo
	httpServer *http.Server
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(cfg config.ServerConfig, coll *collector.Collector) *Server {
	s := &Server{
		cfg:  cfg,
		coll: coll,
	}

	e := echo.New()
	e.Use(securityHeaders())
	if !cfg.AllowRemote {
		e.Use(loopbackOnly())
	}

	// Socket endpoints.
	e.GET("/sdk", s.sdkHandler)
	e.GET("/events", s.eventsHandler)

	// REST surface for the UI.
	e.GET("/health", s.healthHandler)
	v1 := e.Group("/api/v1")
	v1.GET("/sessions", s.listSessionsHandler)
	v1.GET("/events/timeline", s.timelineHandler)
	v1.POST("/events/clear", s.clearEventsHandler)
	v1.GET("/issues", s.issuesHandler)
	v1.GET("/endpoints", s.endpointsHandler)
	v1.GET("/system/stats", s.statsHandler)
	v1.POST("/sessions/:id/commands/dom-snapshot", s.domSnapshotHandler)

	// MCP mount: each request is served by the shared tool server.
	mcpServer := tools.NewServer(coll)
	mcpHandler := mcpsdk.NewStreamableHTTPHandler(
		func(*http.Request) *mcpsdk.Server { return mcpServer }, nil)
	e.Any("/mcp", echo.WrapHandler(mcpHandler))

	s.echo = e
	s.httpServer = &http.Server{Handler: e}
	return s
}

// Echo returns the underlying router. Used by tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

// Start binds the configured port, falling back through successor ports up
// to MaxPortRetries, then serves until Shutdown. Returns ErrPortInUse when
// every candidate is taken; http.ErrServerClosed on clean shutdown.
func (s *Server) Start() error {
	ln, err := s.listen()
	if err != nil {
		return err
	}
	return s.StartWithListener(ln)
}

// StartWithListener serves on an already-bound listener. Used by tests that
// bind port 0.
func (s *Server) StartWithListener(ln net.Listener) error {
	slog.Info("HTTP server listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// listen tries the configured port and its successors.
func (s *Server) listen() (net.Listener, error) {
	for i := 0; i <= s.cfg.MaxPortRetries; i++ {
		addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port+i)
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			if i > 0 {
				slog.Warn("Configured port unavailable, using fallback",
					"configured_port", s.cfg.Port, "port", s.cfg.Port+i)
			}
			return ln, nil
		}
		slog.Debug("Port unavailable", "addr", addr, "error", err)
	}
	return nil, fmt.Errorf("%w: %d-%d", ErrPortInUse, s.cfg.Port, s.cfg.Port+s.cfg.MaxPortRetries)
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
