// Package config holds environment-driven settings for the CRM MCP server.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Environment variables recognized by the server.
const (
	envAPIKey          = "CRM_API_KEY"
	envAPIBase         = "CRM_API_BASE"
	envCacheEnabled    = "CRM_CACHE_ENABLED"
	envCacheMaxEntries = "CRM_CACHE_MAX_ENTRIES"
	envBaseDelayMS     = "CRM_BASE_DELAY_MS"
	envMetricsAddr     = "CRM_METRICS_ADDR"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultAPIBase         = "https://api.followupboss.com/v1"
	DefaultCacheMaxEntries = 1000
	DefaultBaseDelay       = 50 * time.Millisecond
	DefaultPageSize        = 100
	DefaultRequestTimeout  = 30 * time.Second
)

// ErrMissingAPIKey is returned by Validate when no API key is configured.
var ErrMissingAPIKey = errors.New("config: " + envAPIKey + " is required")

// Config carries all runtime settings. Construct via FromEnv; tests may build
// one directly.
type Config struct {
	APIKey  string
	APIBase string

	// SystemName is sent as the X-System header so the remote can attribute
	// traffic to this integration.
	SystemName string

	CacheEnabled    bool
	CacheMaxEntries int

	// BaseDelay is the floor applied between consecutive API requests.
	BaseDelay time.Duration

	// PageSize is the remote-enforced maximum page size.
	PageSize int

	RequestTimeout time.Duration

	// MetricsAddr, when non-empty, enables a debug HTTP listener serving
	// prometheus metrics.
	MetricsAddr string
}

// FromEnv builds a Config from the environment, applying defaults.
func FromEnv() Config {
	cfg := Config{
		APIKey:          os.Getenv(envAPIKey),
		APIBase:         DefaultAPIBase,
		SystemName:      "CRM_MCP_Server_Go",
		CacheEnabled:    true,
		CacheMaxEntries: DefaultCacheMaxEntries,
		BaseDelay:       DefaultBaseDelay,
		PageSize:        DefaultPageSize,
		RequestTimeout:  DefaultRequestTimeout,
		MetricsAddr:     os.Getenv(envMetricsAddr),
	}
	if v := os.Getenv(envAPIBase); v != "" {
		cfg.APIBase = v
	}
	if v := os.Getenv(envCacheEnabled); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.CacheEnabled = b
		}
	}
	if v := os.Getenv(envCacheMaxEntries); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxEntries = n
		}
	}
	if v := os.Getenv(envBaseDelayMS); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.BaseDelay = time.Duration(n) * time.Millisecond
		}
	}
	return cfg
}

// Validate checks that required settings are present.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}
