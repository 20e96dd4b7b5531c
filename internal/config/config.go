// Package config defines process configuration for the draft service and the
// notesctl client, and the loader that layers defaults, a YAML file and env vars.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Form sources.
const (
	FormsCatalog  = "catalog"
	FormsPostgres = "postgres"
)

// Auth modes.
const (
	AuthHeader = "header"
	AuthJWT    = "jwt"
)

// Config contains process configuration. Server and client fields share one
// struct so a single file can configure both binaries.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the draft repository: memory or postgres.
	StoreDriver string `koanf:"store_driver"`
	// PostgresDSN is used by the postgres store and the postgres form source.
	PostgresDSN string `koanf:"postgres_dsn"`

	// RedisURL enables the rubric form cache when set.
	RedisURL string `koanf:"redis_url"`
	// RubricCacheTTLSeconds is the lifetime of a cached form.
	RubricCacheTTLSeconds int `koanf:"rubric_cache_ttl_s"`

	// FormSource selects where rubric forms come from: catalog or postgres.
	FormSource string `koanf:"form_source"`
	// RubricCatalogPath overrides the embedded catalog with a YAML file.
	RubricCatalogPath string `koanf:"rubric_catalog_path"`

	// AuthMode selects how the owner is derived: header or jwt.
	AuthMode string `koanf:"auth_mode"`
	// JWTSecret is the HS256 key used in jwt mode.
	JWTSecret string `koanf:"jwt_secret"`

	// MaxNamedDrafts caps named drafts per evaluator; 0 means unlimited.
	MaxNamedDrafts int `koanf:"max_named_drafts"`

	// Client side.
	RemoteBaseURL    string `koanf:"remote_base_url"`
	SessionToken     string `koanf:"session_token"`
	EvaluatorID      string `koanf:"evaluator_id"`
	LocalCachePath   string `koanf:"local_cache_path"`
	LocalDebounceMS  int    `koanf:"local_debounce_ms"`
	RemoteDebounceMS int    `koanf:"remote_debounce_ms"`
	SyncQueueSize    int    `koanf:"sync_queue_size"`
	DedupeSize       int    `koanf:"dedupe_size"`
	RequestTimeoutMS int    `koanf:"request_timeout_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		StoreDriver:           StoreMemory,
		RubricCacheTTLSeconds: 300,
		FormSource:            FormsCatalog,
		AuthMode:              AuthHeader,
		RemoteBaseURL:         "http://localhost:9080",
		LocalCachePath:        "scoutnotes/drafts.db",
		LocalDebounceMS:       300,
		RemoteDebounceMS:      2000,
		SyncQueueSize:         256,
		DedupeSize:            1024,
		RequestTimeoutMS:      10_000,
	}
}

// LocalDebounce returns the local cache quiescence window.
func (c *Config) LocalDebounce() time.Duration {
	return time.Duration(c.LocalDebounceMS) * time.Millisecond
}

// RemoteDebounce returns the remote store quiescence window.
func (c *Config) RemoteDebounce() time.Duration {
	return time.Duration(c.RemoteDebounceMS) * time.Millisecond
}

// RequestTimeout bounds a single remote call.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// RubricCacheTTL returns the lifetime of a cached rubric form.
func (c *Config) RubricCacheTTL() time.Duration {
	return time.Duration(c.RubricCacheTTLSeconds) * time.Second
}

// Validate checks field values and cross-field requirements.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: store_driver postgres requires postgres_dsn", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	switch c.FormSource {
	case FormsCatalog:
	case FormsPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: form_source postgres requires postgres_dsn", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown form_source %q", ErrInvalidConfig, c.FormSource)
	}
	switch c.AuthMode {
	case AuthHeader:
	case AuthJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("%w: auth_mode jwt requires jwt_secret", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown auth_mode %q", ErrInvalidConfig, c.AuthMode)
	}
	if c.MaxNamedDrafts < 0 {
		return fmt.Errorf("%w: max_named_drafts must not be negative", ErrInvalidConfig)
	}
	if c.LocalDebounceMS <= 0 || c.RemoteDebounceMS <= 0 {
		return fmt.Errorf("%w: debounce windows must be positive", ErrInvalidConfig)
	}
	if c.RemoteDebounceMS < c.LocalDebounceMS {
		return fmt.Errorf("%w: remote_debounce_ms must not be shorter than local_debounce_ms", ErrInvalidConfig)
	}
	if c.SyncQueueSize <= 0 {
		return fmt.Errorf("%w: sync_queue_size must be positive", ErrInvalidConfig)
	}
	if c.RubricCacheTTLSeconds < 0 {
		return fmt.Errorf("%w: rubric_cache_ttl_s must not be negative", ErrInvalidConfig)
	}
	if c.RequestTimeoutMS <= 0 {
		return fmt.Errorf("%w: request_timeout_ms must be positive", ErrInvalidConfig)
	}
	return nil
}
