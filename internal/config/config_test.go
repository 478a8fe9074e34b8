package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
export:
  site_url: https://example.com
  media_root: /srv/media
  temp_dir: /var/tmp
  batch_size: 5
  max_retries: 2
  retry_delay_seconds: 1
  timeout_seconds: 45
  max_redirects: 3
  verify_tls: true
  user_agent: static-agent
  state_ttl_minutes: 30
  ticket_ttl_minutes: 10
store:
  provider: sqlite
  path: /var/lib/turnstatic.db
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Export.BatchSize != 5 || cfg.Export.VerifyTLS != true {
		t.Fatalf("expected export overrides to apply: %+v", cfg.Export)
	}
	if cfg.Store.Provider != "sqlite" || cfg.Store.Path != "/var/lib/turnstatic.db" {
		t.Fatalf("expected sqlite store settings: %+v", cfg.Store)
	}

	settings := cfg.ExportSettings()
	if settings.RetryDelay != time.Second {
		t.Fatalf("expected retry delay 1s, got %v", settings.RetryDelay)
	}
	if settings.FetchTimeout != 45*time.Second {
		t.Fatalf("expected fetch timeout 45s, got %v", settings.FetchTimeout)
	}
	if settings.StateTTL != 30*time.Minute || settings.TicketTTL != 10*time.Minute {
		t.Fatalf("expected TTL conversions, got %v/%v", settings.StateTTL, settings.TicketTTL)
	}
	if settings.Rules.ToolbarID != "wpadminbar" {
		t.Fatalf("expected default rules to survive overrides: %+v", settings.Rules)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TURNSTATIC_EXPORT_SITE_URL", "https://example.com")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Export.BatchSize != 3 || cfg.Export.MaxRetries != 3 {
		t.Fatalf("expected batch defaults, got %+v", cfg.Export)
	}
	if cfg.Export.MaxRedirects != 5 || cfg.Export.VerifyTLS {
		t.Fatalf("expected client defaults, got %+v", cfg.Export)
	}
	if cfg.Store.Provider != "memory" {
		t.Fatalf("expected memory store default, got %q", cfg.Store.Provider)
	}
}

func TestLoadValidation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
export:
  site_url: https://example.com
  batch_size: 0
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "batch_size") {
		t.Fatalf("expected batch_size validation error, got %v", err)
	}
}

func TestValidateMissingSiteURL(t *testing.T) {
	t.Parallel()

	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "site_url") {
		t.Fatalf("expected site_url validation error, got %v", err)
	}
}
