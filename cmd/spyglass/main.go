// Spyglass collector server — ingests runtime events from instrumented
// apps, serves the UI broadcast feed, and exposes query tools over MCP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/spyglass-dev/spyglass/pkg/api"
	"github.com/spyglass-dev/spyglass/pkg/collector"
	"github.com/spyglass-dev/spyglass/pkg/config"
	"github.com/spyglass-dev/spyglass/pkg/store"
	"github.com/spyglass-dev/spyglass/pkg/tools"
	"github.com/spyglass-dev/spyglass/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// setupLogging installs a tint handler on stderr. Stdout stays clean for
// the MCP stdio transport.
func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		TimeFormat: time.Kitchen,
		Level:      lvl,
	})
	slog.SetDefault(slog.New(handler))
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("SPYGLASS_CONFIG_DIR", "."),
		"Path to configuration directory")
	logLevel := flag.String("log-level",
		getEnv("SPYGLASS_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error")
	mcpStdio := flag.Bool("mcp-stdio", false,
		"Serve MCP tools on stdio instead of mounting them on /mcp only")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		return
	}

	setupLogging(*logLevel)

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err == nil {
		slog.Info("Loaded environment", "path", envPath)
	}

	slog.Info("Starting spyglass", "version", version.GitCommit, "config_dir", *configDir)

	cfg, err := config.Initialize(*configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	st := store.New(cfg.Store.RingCapacity)
	coll := collector.New(st, collector.Config{
		SendQueueCap:        cfg.Collector.SendQueueCap,
		BroadcastQueueCap:   cfg.Collector.BroadcastQueueCap,
		PreSessionBufferCap: cfg.Collector.PreSessionBufferCap,
		WriteTimeout:        cfg.Collector.WriteTimeout,
		CommandTimeout:      cfg.Collector.CommandTimeout,
	})

	httpServer := api.NewServer(cfg.Server, coll)

	// Start HTTP server (non-blocking).
	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Optionally serve the tools on stdio for agents that spawn the
	// collector directly.
	if *mcpStdio {
		go func() {
			server := tools.NewServer(coll)
			if err := server.Run(ctx, &mcpsdk.StdioTransport{}); err != nil {
				slog.Error("MCP stdio transport stopped", "error", err)
			}
		}()
		slog.Info("MCP tools serving on stdio")
	}

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// Graceful shutdown: fail pending commands and close sockets, then
	// drain the HTTP server, all within the grace period.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	done := make(chan struct{})
	go func() {
		coll.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		slog.Warn("Collector shutdown grace period exceeded")
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
