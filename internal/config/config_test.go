package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Server.BasePath != "" {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Reconcile.Timeout != 90*time.Second || !cfg.Reconcile.Art {
		t.Errorf("unexpected reconcile config: %+v", cfg.Reconcile)
	}
	if cfg.Marketplace.Currency != "USD" || cfg.Marketplace.DefaultShipping != 18 {
		t.Errorf("unexpected marketplace config: %+v", cfg.Marketplace)
	}
	if cfg.Cache.Path != "" || cfg.Oracle.APIKey != "" {
		t.Error("cache and oracle must be off by default")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spinmatch.yaml")
	writeFile(t, path, `
server:
  port: 9090
  base_path: /records/
logging:
  level: debug
  format: text
reconcile:
  timeout: 45s
  art: false
providers:
  discogs_token: file-token
  contact: ops@example.com
  rate_limits:
    musicbrainz: 0.5
marketplace:
  currency: eur
  shipping:
    germany: 5
cache:
  path: /tmp/cache.db
  ttl: 30m
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.BasePath != "/records" {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.Reconcile.Timeout != 45*time.Second || cfg.Reconcile.Art {
		t.Errorf("unexpected reconcile config: %+v", cfg.Reconcile)
	}
	if cfg.Providers.DiscogsToken != "file-token" || cfg.Providers.RateLimits["musicbrainz"] != 0.5 {
		t.Errorf("unexpected providers config: %+v", cfg.Providers)
	}
	if cfg.Marketplace.Currency != "EUR" || cfg.Marketplace.Shipping["germany"] != 5 {
		t.Errorf("unexpected marketplace config: %+v", cfg.Marketplace)
	}
	if cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("unexpected cache ttl: %v", cfg.Cache.TTL)
	}
	// Unset sections keep their defaults.
	if cfg.Gateway.MaxAttempts != 3 {
		t.Errorf("expected default gateway attempts, got %d", cfg.Gateway.MaxAttempts)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spinmatch.yaml")
	writeFile(t, path, "providers:\n  discogs_token: file-token\n")

	t.Setenv("SM_DISCOGS_TOKEN", "env-token")
	t.Setenv("SM_PORT", "7000")
	t.Setenv("SM_RECONCILE_TIMEOUT", "2m")
	t.Setenv("SM_ART_ENABLED", "false")
	t.Setenv("SM_CURRENCY", "gbp")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.DiscogsToken != "env-token" {
		t.Errorf("expected env token, got %q", cfg.Providers.DiscogsToken)
	}
	if cfg.Server.Port != 7000 || cfg.Reconcile.Timeout != 2*time.Minute || cfg.Reconcile.Art {
		t.Errorf("env overrides not applied: %+v %+v", cfg.Server, cfg.Reconcile)
	}
	if cfg.Marketplace.Currency != "GBP" {
		t.Errorf("expected GBP, got %s", cfg.Marketplace.Currency)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"port", map[string]string{"SM_PORT": "70000"}, "invalid port"},
		{"port syntax", map[string]string{"SM_PORT": "eighty"}, "SM_PORT"},
		{"timeout", map[string]string{"SM_RECONCILE_TIMEOUT": "soon"}, "SM_RECONCILE_TIMEOUT"},
		{"zero timeout", map[string]string{"SM_RECONCILE_TIMEOUT": "0s"}, "reconcile timeout"},
		{"level", map[string]string{"SM_LOG_LEVEL": "trace"}, "log level"},
		{"currency", map[string]string{"SM_CURRENCY": "dollars"}, "currency"},
		{"shipping", map[string]string{"SM_DEFAULT_SHIPPING": "-1"}, "default shipping"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spinmatch.yaml")
	writeFile(t, path, "logging:\n  level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, path, slog.New(slog.DiscardHandler), 10*time.Millisecond, func(c *Config) { got <- c })
	}()

	// Give the watcher time to register before writing.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case c := <-got:
			if c.Logging.Level != "debug" {
				t.Errorf("expected reloaded level debug, got %s", c.Logging.Level)
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("watch returned %v", err)
			}
			return
		case <-tick.C:
			writeFile(t, path, "logging:\n  level: debug\n")
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		}
	}
}

func TestWatchSkipsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spinmatch.yaml")
	writeFile(t, path, "logging:\n  level: info\n")

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	applied := make(chan struct{}, 1)
	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o600)
	}()
	if err := watch(ctx, path, slog.New(slog.DiscardHandler), 10*time.Millisecond, func(*Config) { applied <- struct{}{} }); err != nil {
		t.Fatalf("watch: %v", err)
	}
	select {
	case <-applied:
		t.Error("an invalid file must not be applied")
	default:
	}
}
