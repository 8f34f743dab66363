package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	require.NoError(t, err)

	assert.Equal(t, defaultServerURL, cfg.ServerURL)
	assert.Equal(t, filepath.Join(home, ".local/share/outbox/outbox.db"), cfg.Database)
	assert.Equal(t, 5*time.Second, cfg.ProbeInterval)
	assert.Equal(t, 30*time.Second, cfg.ReconcileInterval)
	assert.Equal(t, 30*time.Second, cfg.InvokeTimeout)
	assert.Equal(t, 5*time.Second, cfg.ResultWindow)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Empty(t, cfg.Catalog)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoad_ParsesAllFields(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := writeConfig(t, `
server_url = "  https://pos.example.com  "
database = "~/data/queue.db"
probe_interval = "2s"
reconcile_interval = "1m"
invoke_timeout = "10s"
result_window = "3s"
metrics_addr = "127.0.0.1:9464"
catalog = "~/catalog.cue"
log_level = "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://pos.example.com", cfg.ServerURL)
	assert.Equal(t, filepath.Join(home, "data/queue.db"), cfg.Database)
	assert.Equal(t, 2*time.Second, cfg.ProbeInterval)
	assert.Equal(t, time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, 10*time.Second, cfg.InvokeTimeout)
	assert.Equal(t, 3*time.Second, cfg.ResultWindow)
	assert.Equal(t, "127.0.0.1:9464", cfg.MetricsAddr)
	assert.True(t, strings.HasPrefix(cfg.Catalog, home))
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := writeConfig(t, `
server_url = "   "
database = ""
probe_interval = ""
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad duration", `invoke_timeout = "soon"`, "invoke_timeout"},
		{"negative duration", `result_window = "-1s"`, "must be positive"},
		{"bad level", `log_level = "chatty"`, "log_level"},
		{"unknown key", `sever_url = "http://x"`, "parse config"},
		{"not toml", `server_url = `, "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandPath("~/x/y.db")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x/y.db"), got)

	_, err = ExpandPath("  ")
	assert.Error(t, err)
}

func TestDefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	assert.Equal(t, filepath.Join(home, ".config/outbox/config.toml"), DefaultPath())
}
