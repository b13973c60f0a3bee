package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sydlexius/spinmatch/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     logging.Config    `yaml:"logging"`
	Reconcile   ReconcileConfig   `yaml:"reconcile"`
	Gateway     GatewayConfig     `yaml:"gateway"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Marketplace MarketplaceConfig `yaml:"marketplace"`
	Oracle      OracleConfig      `yaml:"oracle"`
	Cache       CacheConfig       `yaml:"cache"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	BasePath        string        `yaml:"base_path"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ReconcileConfig controls the reconciliation pipeline.
type ReconcileConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	Art       bool          `yaml:"art"`
	ArtMaxDim int           `yaml:"art_max_dim"`
}

// GatewayConfig controls retries for every outbound call.
type GatewayConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
}

// ProvidersConfig holds upstream endpoints and credentials. Empty URLs use
// each adapter's public default.
type ProvidersConfig struct {
	MusicBrainzURL string `yaml:"musicbrainz_url"`
	CoverArtURL    string `yaml:"coverart_url"`
	WikipediaURL   string `yaml:"wikipedia_url"`
	DiscogsURL     string `yaml:"discogs_url"`
	DiscogsToken   string `yaml:"discogs_token"`
	// Contact is appended to the User-Agent; MusicBrainz asks for one.
	Contact    string             `yaml:"contact"`
	RateLimits map[string]float64 `yaml:"rate_limits"`
}

// MarketplaceConfig holds pricing settings.
type MarketplaceConfig struct {
	Currency        string             `yaml:"currency"`
	DefaultShipping float64            `yaml:"default_shipping"`
	Shipping        map[string]float64 `yaml:"shipping"`
}

// OracleConfig holds the AI gateway settings. The oracle is disabled when
// APIKey is empty.
type OracleConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig holds the price cache settings. The cache is disabled when
// Path is empty.
type CacheConfig struct {
	Path string        `yaml:"path"`
	TTL  time.Duration `yaml:"ttl"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			BasePath:        "/",
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: logging.DefaultConfig(),
		Reconcile: ReconcileConfig{
			Timeout:   90 * time.Second,
			Art:       true,
			ArtMaxDim: 600,
		},
		Gateway: GatewayConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
		},
		Marketplace: MarketplaceConfig{
			Currency:        "USD",
			DefaultShipping: 18,
		},
		Oracle: OracleConfig{
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			TTL: 6 * time.Hour,
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() error {
	strs := map[string]*string{
		"SM_BASE_PATH":       &c.Server.BasePath,
		"SM_LOG_LEVEL":       &c.Logging.Level,
		"SM_LOG_FORMAT":      &c.Logging.Format,
		"SM_LOG_FILE":        &c.Logging.FilePath,
		"SM_MUSICBRAINZ_URL": &c.Providers.MusicBrainzURL,
		"SM_COVERART_URL":    &c.Providers.CoverArtURL,
		"SM_WIKIPEDIA_URL":   &c.Providers.WikipediaURL,
		"SM_DISCOGS_URL":     &c.Providers.DiscogsURL,
		"SM_DISCOGS_TOKEN":   &c.Providers.DiscogsToken,
		"SM_CONTACT":         &c.Providers.Contact,
		"SM_CURRENCY":        &c.Marketplace.Currency,
		"SM_ORACLE_API_KEY":  &c.Oracle.APIKey,
		"SM_ORACLE_BASE_URL": &c.Oracle.BaseURL,
		"SM_ORACLE_MODEL":    &c.Oracle.Model,
		"SM_CACHE_PATH":      &c.Cache.Path,
	}
	for name, dst := range strs {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("SM_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SM_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("SM_ART_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SM_ART_ENABLED: %w", err)
		}
		c.Reconcile.Art = b
	}
	if v := os.Getenv("SM_DEFAULT_SHIPPING"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SM_DEFAULT_SHIPPING: %w", err)
		}
		c.Marketplace.DefaultShipping = f
	}

	durations := map[string]*time.Duration{
		"SM_RECONCILE_TIMEOUT": &c.Reconcile.Timeout,
		"SM_ORACLE_TIMEOUT":    &c.Oracle.Timeout,
		"SM_CACHE_TTL":         &c.Cache.TTL,
	}
	for name, dst := range durations {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = d
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	c.Server.BasePath = strings.TrimRight(c.Server.BasePath, "/")
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("base path must start with /: %q", c.Server.BasePath)
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	if !logging.ValidFormat(c.Logging.Format) {
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %s", c.Server.ShutdownTimeout)
	}
	if c.Reconcile.Timeout <= 0 {
		return fmt.Errorf("reconcile timeout must be positive")
	}
	if c.Reconcile.ArtMaxDim < 0 {
		return fmt.Errorf("invalid art max dimension: %d", c.Reconcile.ArtMaxDim)
	}
	if c.Gateway.MaxAttempts < 1 {
		return fmt.Errorf("gateway max attempts must be at least 1")
	}
	if c.Gateway.BaseDelay < 0 {
		return fmt.Errorf("gateway base delay must not be negative")
	}
	c.Marketplace.Currency = strings.ToUpper(strings.TrimSpace(c.Marketplace.Currency))
	if len(c.Marketplace.Currency) != 3 {
		return fmt.Errorf("invalid currency code: %q", c.Marketplace.Currency)
	}
	if c.Marketplace.DefaultShipping < 0 {
		return fmt.Errorf("default shipping must not be negative")
	}
	for name, rps := range c.Providers.RateLimits {
		if rps < 0 {
			return fmt.Errorf("invalid rate limit for %s: %v", name, rps)
		}
	}
	return nil
}
