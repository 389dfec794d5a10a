package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

// These tests touch the process environment and the global Conf, so they
// do not run in parallel.

func TestLoadDefaults(t *testing.T) {
	root := t.TempDir()
	_, err := Load(root)
	require.NoError(t, err)

	cfg := Get()
	require.NotNil(t, cfg)
	assert.Equal(t, "5050", cfg.Server.Port)
	assert.Equal(t, "X-User-ID", cfg.Server.UserHeader)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 200*time.Millisecond, cfg.Database.SlowThreshold)
	assert.Equal(t, 0.5, cfg.Practice.MinConfidence)
	assert.Equal(t, 2*time.Minute, cfg.Practice.IdleTimeout)
	assert.False(t, cfg.MQTT.Enabled)
	assert.NotEmpty(t, cfg.Server.SessionSecret)
	assert.True(t, cfg.Server.GeneratedSecret())
}

func TestLoadFileAndEnvironment(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "config", "config.yaml"), `
server:
  port: "8080"
  session_secret: from-file
database:
  driver: sqlite
  path: /tmp/yoga.db
practice:
  min_confidence: 0.3
  idle_timeout: 45s
mqtt:
  enabled: true
  topic_prefix: studio/cam
`)
	writeFile(t, filepath.Join(root, ".env"), "FREEYOGA_REDIS_CHANNEL=from-dotenv\n")
	t.Setenv("FREEYOGA_SERVER_PORT", "9090")
	t.Cleanup(func() { os.Unsetenv("FREEYOGA_REDIS_CHANNEL") })

	_, err := Load(root)
	require.NoError(t, err)

	cfg := Get()
	assert.Equal(t, "9090", cfg.Server.Port, "environment overrides the file")
	assert.Equal(t, "from-file", cfg.Server.SessionSecret)
	assert.False(t, cfg.Server.GeneratedSecret())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/yoga.db", cfg.Database.Path)
	assert.Equal(t, 0.3, cfg.Practice.MinConfidence)
	assert.Equal(t, 45*time.Second, cfg.Practice.IdleTimeout)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "studio/cam", cfg.MQTT.TopicPrefix)
	assert.Equal(t, "from-dotenv", cfg.Redis.Channel)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"driver":     "database:\n  driver: oracle\n",
		"confidence": "practice:\n  min_confidence: 1.5\n",
		"broken":     "server: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, filepath.Join(root, "config", "config.yaml"), body)
			_, err := Load(root)
			assert.Error(t, err)
		})
	}
}
