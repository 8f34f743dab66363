package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds the resolved settings.
type Config struct {
	ServerURL         string
	Database          string
	ProbeInterval     time.Duration
	ReconcileInterval time.Duration
	InvokeTimeout     time.Duration
	ResultWindow      time.Duration
	MetricsAddr       string
	Catalog           string
	LogLevel          slog.Level
}

const (
	defaultConfigPath        = "~/.config/outbox/config.toml"
	defaultServerURL         = "http://127.0.0.1:8080"
	defaultDatabase          = "~/.local/share/outbox/outbox.db"
	defaultProbeInterval     = 5 * time.Second
	defaultReconcileInterval = 30 * time.Second
	defaultInvokeTimeout     = 30 * time.Second
	defaultResultWindow      = 5 * time.Second
)

// Default returns the settings used when no file exists.
func Default() Config {
	return Config{
		ServerURL:         defaultServerURL,
		Database:          mustExpand(defaultDatabase),
		ProbeInterval:     defaultProbeInterval,
		ReconcileInterval: defaultReconcileInterval,
		InvokeTimeout:     defaultInvokeTimeout,
		ResultWindow:      defaultResultWindow,
		LogLevel:          slog.LevelInfo,
	}
}

// DefaultPath returns the expanded default config location.
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
}

// Load locates and parses the config, falling back to defaults when missing.
// An empty path means the default location.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		ServerURL         string `toml:"server_url"`
		Database          string `toml:"database"`
		ProbeInterval     string `toml:"probe_interval"`
		ReconcileInterval string `toml:"reconcile_interval"`
		InvokeTimeout     string `toml:"invoke_timeout"`
		ResultWindow      string `toml:"result_window"`
		MetricsAddr       string `toml:"metrics_addr"`
		Catalog           string `toml:"catalog"`
		LogLevel          string `toml:"log_level"`
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", resolved, err)
	}

	if v := strings.TrimSpace(raw.ServerURL); v != "" {
		cfg.ServerURL = v
	}
	if v := strings.TrimSpace(raw.Database); v != "" {
		if cfg.Database, err = expandPath(v); err != nil {
			return Config{}, fmt.Errorf("database: %w", err)
		}
	}
	if v := strings.TrimSpace(raw.Catalog); v != "" {
		if cfg.Catalog, err = expandPath(v); err != nil {
			return Config{}, fmt.Errorf("catalog: %w", err)
		}
	}
	cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"probe_interval", raw.ProbeInterval, &cfg.ProbeInterval},
		{"reconcile_interval", raw.ReconcileInterval, &cfg.ReconcileInterval},
		{"invoke_timeout", raw.InvokeTimeout, &cfg.InvokeTimeout},
		{"result_window", raw.ResultWindow, &cfg.ResultWindow},
	}
	for _, d := range durations {
		if err := parseDuration(d.key, d.raw, d.dst); err != nil {
			return Config{}, err
		}
	}

	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("log_level %q: %w", v, err)
		}
	}

	return cfg, nil
}

// ExpandPath resolves ~ and makes path absolute.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func parseDuration(key, raw string, dst *time.Duration) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s: must be positive, got %s", key, raw)
	}
	*dst = d
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
