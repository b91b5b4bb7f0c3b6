package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibesense/phmwatch/internal/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.Equal(t, "localhost:8081", cfg.Server.Host)
	assert.False(t, cfg.Server.Secure)
	assert.Equal(t, 10*time.Second, cfg.Server.HandshakeTimeout)
	assert.Equal(t, 10, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Reconnect.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Reconnect.MaxDelay)
	assert.Equal(t, 1000, cfg.Buffer.MaxPoints)
	assert.Equal(t, 1000, cfg.Buffer.Window)
	assert.Equal(t, 50, cfg.Alerts.Capacity)
	assert.Equal(t, "user", cfg.Alerts.AcknowledgedBy)
	assert.Equal(t, time.Second, cfg.Monitor.Interval)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.Empty(t, cfg.NATS.URL)
	assert.Equal(t, "phm", cfg.NATS.SubjectPrefix)

	require.NoError(t, Validate(cfg))
}

func TestAPIBaseURL(t *testing.T) {
	tests := []struct {
		name   string
		server ServerConfig
		want   string
	}{
		{"derived", ServerConfig{Host: "localhost:8081"}, "http://localhost:8081"},
		{"derived secure", ServerConfig{Host: "phm.example.com", Secure: true}, "https://phm.example.com"},
		{"explicit", ServerConfig{Host: "localhost:8081", APIBase: "http://api.local:9000/"}, "http://api.local:9000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.server.APIBaseURL())
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)

	content := `
version: 1
server:
  host: plant-gw:8081
  secure: true
  handshake_timeout: 5s
reconnect:
  max_attempts: 4
  base_delay: 500ms
buffer:
  max_points: 200
  window: 100
alerts:
  acknowledged_by: night-shift
metrics:
  addr: ":9090"
nats:
  url: nats://localhost:4222
  subject_prefix: plant
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "plant-gw:8081", cfg.Server.Host)
	assert.True(t, cfg.Server.Secure)
	assert.Equal(t, 5*time.Second, cfg.Server.HandshakeTimeout)
	assert.Equal(t, 4, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Reconnect.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Reconnect.MaxDelay, "unset keys keep defaults")
	assert.Equal(t, 200, cfg.Buffer.MaxPoints)
	assert.Equal(t, 100, cfg.Buffer.Window)
	assert.Equal(t, 50, cfg.Alerts.Capacity)
	assert.Equal(t, "night-shift", cfg.Alerts.AcknowledgedBy)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "plant", cfg.NATS.SubjectPrefix)
	require.NoError(t, Validate(cfg))
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  host: a:1\n"), 0644))

	t.Setenv("PHMWATCH_SERVER_HOST", "b:2")
	t.Setenv("PHMWATCH_RECONNECT_MAX_ATTEMPTS", "3")

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "b:2", cfg.Server.Host)
	assert.Equal(t, 3, cfg.Reconnect.MaxAttempts)
}

func TestLoadExpandsEnv(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(configPath, []byte("nats:\n  url: nats://${NATS_TEST_HOST}:4222\n"), 0644))

	t.Setenv("NATS_TEST_HOST", "broker")

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/.phmwatch.yaml")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(configPath, []byte("reconnect:\n  base_delay: soon\n"), 0644))

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid config format")
}

func TestFind(t *testing.T) {
	t.Run("explicit path exists", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "custom.yaml")
		require.NoError(t, os.WriteFile(path, []byte("version: 1"), 0644))

		got, err := Find(path)
		require.NoError(t, err)
		assert.Equal(t, path, got)
	})

	t.Run("explicit path not found", func(t *testing.T) {
		_, err := Find("/nonexistent/config.yaml")
		assert.Error(t, err)
	})

	t.Run("current directory has config", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("version: 1"), 0644))
		t.Chdir(dir)

		got, err := Find("")
		require.NoError(t, err)
		assert.Equal(t, ConfigFileName, filepath.Base(got))
	})

	t.Run("parent directory has config", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("version: 1"), 0644))
		child := filepath.Join(dir, "sub", "deeper")
		require.NoError(t, os.MkdirAll(child, 0755))
		t.Chdir(child)

		got, err := Find("")
		require.NoError(t, err)
		assert.Equal(t, ConfigFileName, filepath.Base(got))
	})
}

func TestLoadOrDefault(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0755))
	t.Chdir(dir)

	cfg, path, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "", ExpandTilde(""))
	assert.Equal(t, home, ExpandTilde("~"))
	assert.Equal(t, filepath.Join(home, "x.yaml"), ExpandTilde("~/x.yaml"))
	assert.Equal(t, "/etc/x.yaml", ExpandTilde("/etc/x.yaml"))
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("PHM_TEST_VAR", "value")

	assert.Equal(t, "plain", ExpandEnv("plain"))
	assert.Equal(t, "a-value-b", ExpandEnv("a-${PHM_TEST_VAR}-b"))
	assert.Equal(t, "a-${PHM_UNSET_VAR_X}", ExpandEnv("a-${PHM_UNSET_VAR_X}"))
}
