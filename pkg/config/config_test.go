package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o600))
	return dir
}

func TestInitialize_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Initialize(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 3684, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Server.MaxPortRetries)
	assert.False(t, cfg.Server.AllowRemote)
	assert.Equal(t, 10000, cfg.Store.RingCapacity)
	assert.Equal(t, 10*time.Second, cfg.Collector.CommandTimeout)
	assert.Equal(t, 2*time.Second, cfg.ShutdownGrace)
}

func TestInitialize_UserValuesOverrideDefaults(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: 4100
  allow_remote: true
store:
  ring_capacity: 500
collector:
  command_timeout: 30s
`)

	cfg, err := Initialize(dir)
	require.NoError(t, err)

	assert.Equal(t, 4100, cfg.Server.Port)
	assert.True(t, cfg.Server.AllowRemote)
	assert.Equal(t, 500, cfg.Store.RingCapacity)
	assert.Equal(t, 30*time.Second, cfg.Collector.CommandTimeout)

	// Unset values keep their defaults.
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 256, cfg.Collector.SendQueueCap)
	assert.Equal(t, 2*time.Second, cfg.ShutdownGrace)
}

func TestInitialize_EnvExpansion(t *testing.T) {
	t.Setenv("SPYGLASS_TEST_PORT", "4200")
	dir := writeConfig(t, `
server:
  port: {{.SPYGLASS_TEST_PORT}}
`)

	cfg, err := Initialize(dir)
	require.NoError(t, err)
	assert.Equal(t, 4200, cfg.Server.Port)
}

func TestInitialize_InvalidYAML(t *testing.T) {
	dir := writeConfig(t, "server: [not: a: mapping")

	_, err := Initialize(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidYAML)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ConfigFileName, loadErr.File)
}

func TestInitialize_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"port too high", "server:\n  port: 70000\n", "server.port"},
		{"port range overflow", "server:\n  port: 65530\n  max_port_retries: 10\n", "server.max_port_retries"},
		{"negative ring capacity", "store:\n  ring_capacity: -1\n", "store.ring_capacity"},
		{"negative command timeout", "collector:\n  command_timeout: -5s\n", "collector.command_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Initialize(writeConfig(t, tt.content))
			require.Error(t, err)

			var valErr *ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, tt.field, valErr.Field)
		})
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("SPYGLASS_TEST_HOST", "0.0.0.0")

	t.Run("expands variables", func(t *testing.T) {
		out := ExpandEnv([]byte("host: {{.SPYGLASS_TEST_HOST}}"))
		assert.Equal(t, "host: 0.0.0.0", string(out))
	})

	t.Run("missing variable expands to empty", func(t *testing.T) {
		out := ExpandEnv([]byte("host: {{.SPYGLASS_DOES_NOT_EXIST_12345}}"))
		assert.Equal(t, "host: ", string(out))
	})

	t.Run("malformed template passes through", func(t *testing.T) {
		in := []byte("host: {{.unterminated")
		assert.Equal(t, in, ExpandEnv(in))
	})

	t.Run("dollar signs untouched", func(t *testing.T) {
		in := []byte("pattern: ^\\$\\d+$")
		assert.Equal(t, in, ExpandEnv(in))
	})
}
