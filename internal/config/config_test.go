package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	require.NoError(t, Load(""))
	cfg := Get()
	require.NotNil(t, cfg)

	assert.Equal(t, "mailboard", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "./mailboard.db", cfg.Database.DSN)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)

	assert.Equal(t, "ws://localhost:8080/ws/events", cfg.Events.URL)
	assert.Equal(t, 30*time.Second, cfg.Events.PingInterval)
	assert.Equal(t, time.Second, cfg.Events.Reconnect.InitialDelay)
	assert.Equal(t, 30*time.Second, cfg.Events.Reconnect.MaxDelay)
	assert.Equal(t, 10, cfg.Events.Reconnect.MaxAttempts)
	assert.Equal(t, 1.5, cfg.Events.Reconnect.Multiplier)

	assert.True(t, cfg.Sampler.Enabled)
	assert.Equal(t, "@every 30s", cfg.Sampler.QueueSchedule)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
app:
  name: mailboard-staging
  env: staging
server:
  port: 9090
database:
  driver: postgres
  dsn: postgres://mailboard:pw@localhost/mailboard?sslmode=disable
events:
  url: wss://staging.example.com/ws/events
  reconnect:
    initial_delay: 500ms
    max_attempts: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, Load(path))

	cfg := Get()
	require.NotNil(t, cfg)
	assert.Equal(t, "mailboard-staging", cfg.App.Name)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "wss://staging.example.com/ws/events", cfg.Events.URL)
	assert.Equal(t, 500*time.Millisecond, cfg.Events.Reconnect.InitialDelay)
	assert.Equal(t, 5, cfg.Events.Reconnect.MaxAttempts)

	// Unset keys keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Events.Reconnect.MaxDelay)
	assert.Equal(t, 1.5, cfg.Events.Reconnect.Multiplier)
}

func TestWatchObservesReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  name: before\n"), 0o644))
	require.NoError(t, Load(path))
	require.Equal(t, "before", Get().App.Name)

	reloaded := make(chan *Config, 8)
	Watch(func(c *Config) { reloaded <- c })

	require.NoError(t, os.WriteFile(path, []byte("app:\n  name: after\n"), 0o644))

	// The watcher may fire more than once per write; wait for the final
	// content to come through.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-reloaded:
			if c.App.Name == "after" {
				assert.Equal(t, "after", Get().App.Name)
				return
			}
		case <-deadline:
			t.Fatal("config reload never observed")
		}
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("MAILBOARD_SERVER_PORT", "7171")
	t.Setenv("MAILBOARD_AUTH_JWT_SECRET", "env-secret")

	require.NoError(t, Load(""))
	cfg := Get()
	require.NotNil(t, cfg)
	assert.Equal(t, 7171, cfg.Server.Port)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Run("bad port", func(t *testing.T) {
		t.Setenv("MAILBOARD_SERVER_PORT", "70000")
		err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("bad driver", func(t *testing.T) {
		t.Setenv("MAILBOARD_DATABASE_DRIVER", "mysql")
		err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported database driver")
	})

	t.Run("bad multiplier", func(t *testing.T) {
		t.Setenv("MAILBOARD_EVENTS_RECONNECT_MULTIPLIER", "1")
		err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "multiplier")
	})

	t.Run("missing file", func(t *testing.T) {
		err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})
}
