// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sanneemmanuel/turnstatic/internal/export"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Export  ExportConfig  `mapstructure:"export"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ExportConfig governs the export pipeline.
type ExportConfig struct {
	SiteURL           string `mapstructure:"site_url"`
	MediaRoot         string `mapstructure:"media_root"`
	TempDir           string `mapstructure:"temp_dir"`
	BatchSize         int    `mapstructure:"batch_size"`
	MaxRetries        int    `mapstructure:"max_retries"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	MaxRedirects      int    `mapstructure:"max_redirects"`
	VerifyTLS         bool   `mapstructure:"verify_tls"`
	UserAgent         string `mapstructure:"user_agent"`
	StateTTLMinutes   int    `mapstructure:"state_ttl_minutes"`
	TicketTTLMinutes  int    `mapstructure:"ticket_ttl_minutes"`
	Rules             RulesConfig `mapstructure:"rules"`
}

// RulesConfig names the page markup hooks stripped or rewritten during
// transformation.
type RulesConfig struct {
	DynamicClass        string `mapstructure:"dynamic_class"`
	ToolbarID           string `mapstructure:"toolbar_id"`
	EditOriginRel       string `mapstructure:"edit_origin_rel"`
	InternalAssetMarker string `mapstructure:"internal_asset_marker"`
}

// StoreConfig selects the state persistence backend.
type StoreConfig struct {
	Provider string `mapstructure:"provider"`
	Path     string `mapstructure:"path"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TURNSTATIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Empty defaults register the keys so environment-only overrides are
	// visible to Unmarshal.
	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("export.site_url", "")
	v.SetDefault("export.media_root", "")
	v.SetDefault("export.temp_dir", "/tmp")
	v.SetDefault("export.batch_size", 3)
	v.SetDefault("export.max_retries", 3)
	v.SetDefault("export.retry_delay_seconds", 2)
	v.SetDefault("export.timeout_seconds", 30)
	v.SetDefault("export.max_redirects", 5)
	v.SetDefault("export.verify_tls", false)
	v.SetDefault("export.user_agent", "turnstatic/1.0")
	v.SetDefault("export.state_ttl_minutes", 60)
	v.SetDefault("export.ticket_ttl_minutes", 15)
	v.SetDefault("export.rules.dynamic_class", "dynamic-class")
	v.SetDefault("export.rules.toolbar_id", "wpadminbar")
	v.SetDefault("export.rules.edit_origin_rel", "edituri")
	v.SetDefault("export.rules.internal_asset_marker", "wp-includes")
	v.SetDefault("store.provider", "memory")
	v.SetDefault("store.path", "turnstatic.db")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Export.SiteURL == "" {
		return fmt.Errorf("export.site_url is required")
	}
	if c.Export.BatchSize <= 0 {
		return fmt.Errorf("export.batch_size must be > 0")
	}
	if c.Export.MaxRetries <= 0 {
		return fmt.Errorf("export.max_retries must be > 0")
	}
	if c.Export.TimeoutSeconds <= 0 {
		return fmt.Errorf("export.timeout_seconds must be > 0")
	}
	if c.Export.MaxRedirects < 0 {
		return fmt.Errorf("export.max_redirects must be >= 0")
	}
	if c.Export.StateTTLMinutes <= 0 {
		return fmt.Errorf("export.state_ttl_minutes must be > 0")
	}
	if c.Export.TicketTTLMinutes <= 0 {
		return fmt.Errorf("export.ticket_ttl_minutes must be > 0")
	}
	if c.Store.Provider == "sqlite" && c.Store.Path == "" {
		return fmt.Errorf("store.path is required for the sqlite provider")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required when auth is enabled")
	}
	return nil
}

// ExportSettings converts the loaded knobs into the pipeline's config.
func (c Config) ExportSettings() export.Config {
	return export.Config{
		SiteURL:      c.Export.SiteURL,
		MediaRoot:    c.Export.MediaRoot,
		TempDir:      c.Export.TempDir,
		BatchSize:    c.Export.BatchSize,
		MaxRetries:   c.Export.MaxRetries,
		RetryDelay:   time.Duration(c.Export.RetryDelaySeconds) * time.Second,
		FetchTimeout: time.Duration(c.Export.TimeoutSeconds) * time.Second,
		MaxRedirects: c.Export.MaxRedirects,
		VerifyTLS:    c.Export.VerifyTLS,
		UserAgent:    c.Export.UserAgent,
		StateTTL:     time.Duration(c.Export.StateTTLMinutes) * time.Minute,
		TicketTTL:    time.Duration(c.Export.TicketTTLMinutes) * time.Minute,
		Rules: export.InlineRules{
			DynamicClass:        c.Export.Rules.DynamicClass,
			ToolbarID:           c.Export.Rules.ToolbarID,
			EditOriginRel:       c.Export.Rules.EditOriginRel,
			InternalAssetMarker: c.Export.Rules.InternalAssetMarker,
		},
	}
}
