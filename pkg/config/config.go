// Package config loads spyglass.yaml, expands environment references,
// merges user values over built-in defaults, and validates the result.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the expected file name inside the config directory.
const ConfigFileName = "spyglass.yaml"

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// Host is the bind address. Defaults to loopback; the server carries no
	// authentication.
	Host string `yaml:"host"`

	// Port is the first candidate port.
	Port int `yaml:"port"`

	// MaxPortRetries is how many successor ports to try when Port is taken.
	MaxPortRetries int `yaml:"max_port_retries"`

	// AllowRemote disables the loopback-only middleware.
	AllowRemote bool `yaml:"allow_remote"`
}

// StoreConfig holds the event store settings.
type StoreConfig struct {
	// RingCapacity is the per-event-type retention cap.
	RingCapacity int `yaml:"ring_capacity"`
}

// CollectorConfig holds the per-connection bounds.
type CollectorConfig struct {
	// SendQueueCap bounds each SDK connection's outbound writer queue.
	SendQueueCap int `yaml:"send_queue_cap"`

	// BroadcastQueueCap bounds each UI subscriber's pending-frame queue.
	BroadcastQueueCap int `yaml:"broadcast_queue_cap"`

	// PreSessionBufferCap bounds events buffered before the session frame.
	PreSessionBufferCap int `yaml:"pre_session_buffer_cap"`

	// WriteTimeout guards individual socket writes.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// CommandTimeout is the default command round-trip deadline.
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// Config is the resolved application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Collector CollectorConfig `yaml:"collector"`

	// ShutdownGrace bounds the drain of sockets and pending commands on
	// shutdown.
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           3684,
			MaxPortRetries: 10,
		},
		Store: StoreConfig{
			RingCapacity: 10000,
		},
		Collector: CollectorConfig{
			SendQueueCap:        256,
			BroadcastQueueCap:   1024,
			PreSessionBufferCap: 64,
			WriteTimeout:        10 * time.Second,
			CommandTimeout:      10 * time.Second,
		},
		ShutdownGrace: 2 * time.Second,
	}
}

// Initialize loads, merges, and validates configuration. A missing config
// file is not an error; the defaults apply.
func Initialize(configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)

	cfg := Default()

	path := filepath.Join(configDir, ConfigFileName)
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		log.Info("No config file found, using defaults", "path", path)
	case err != nil:
		return nil, NewLoadError(ConfigFileName, err)
	default:
		data = ExpandEnv(data)

		var user Config
		if err := yaml.Unmarshal(data, &user); err != nil {
			return nil, NewLoadError(ConfigFileName, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
		}
		// User values override defaults; zero values fall through.
		if err := mergo.Merge(cfg, &user, mergo.WithOverride); err != nil {
			return nil, NewLoadError(ConfigFileName, err)
		}
		log.Info("Loaded configuration", "path", path)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return NewValidationError("server.port", fmt.Sprintf("must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.MaxPortRetries < 0 {
		return NewValidationError("server.max_port_retries", "must not be negative")
	}
	if c.Server.Port+c.Server.MaxPortRetries > 65535 {
		return NewValidationError("server.max_port_retries", "port range exceeds 65535")
	}
	if c.Store.RingCapacity <= 0 {
		return NewValidationError("store.ring_capacity", "must be positive")
	}
	if c.Collector.SendQueueCap <= 0 {
		return NewValidationError("collector.send_queue_cap", "must be positive")
	}
	if c.Collector.BroadcastQueueCap <= 0 {
		return NewValidationError("collector.broadcast_queue_cap", "must be positive")
	}
	if c.Collector.PreSessionBufferCap <= 0 {
		return NewValidationError("collector.pre_session_buffer_cap", "must be positive")
	}
	if c.Collector.WriteTimeout <= 0 {
		return NewValidationError("collector.write_timeout", "must be positive")
	}
	if c.Collector.CommandTimeout <= 0 {
		return NewValidationError("collector.command_timeout", "must be positive")
	}
	if c.ShutdownGrace <= 0 {
		return NewValidationError("shutdown_grace", "must be positive")
	}
	return nil
}
