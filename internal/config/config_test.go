package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("CRM_API_KEY", "abc123")
	t.Setenv("CRM_API_BASE", "")
	t.Setenv("CRM_CACHE_ENABLED", "")
	t.Setenv("CRM_CACHE_MAX_ENTRIES", "")
	t.Setenv("CRM_BASE_DELAY_MS", "")
	t.Setenv("CRM_METRICS_ADDR", "")

	cfg := FromEnv()

	assert.Equal(t, "abc123", cfg.APIKey)
	assert.Equal(t, DefaultAPIBase, cfg.APIBase)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, DefaultCacheMaxEntries, cfg.CacheMaxEntries)
	assert.Equal(t, DefaultBaseDelay, cfg.BaseDelay)
	assert.Equal(t, DefaultPageSize, cfg.PageSize)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Empty(t, cfg.MetricsAddr)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CRM_API_KEY", "abc123")
	t.Setenv("CRM_API_BASE", "http://localhost:9999/v1")
	t.Setenv("CRM_CACHE_ENABLED", "false")
	t.Setenv("CRM_CACHE_MAX_ENTRIES", "50")
	t.Setenv("CRM_BASE_DELAY_MS", "10")
	t.Setenv("CRM_METRICS_ADDR", "127.0.0.1:9090")

	cfg := FromEnv()

	assert.Equal(t, "http://localhost:9999/v1", cfg.APIBase)
	assert.False(t, cfg.CacheEnabled)
	assert.Equal(t, 50, cfg.CacheMaxEntries)
	assert.Equal(t, 10*time.Millisecond, cfg.BaseDelay)
	assert.Equal(t, "127.0.0.1:9090", cfg.MetricsAddr)
}

func TestFromEnvIgnoresBadValues(t *testing.T) {
	t.Setenv("CRM_API_KEY", "abc123")
	t.Setenv("CRM_CACHE_ENABLED", "not-a-bool")
	t.Setenv("CRM_CACHE_MAX_ENTRIES", "-5")
	t.Setenv("CRM_BASE_DELAY_MS", "fast")

	cfg := FromEnv()

	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, DefaultCacheMaxEntries, cfg.CacheMaxEntries)
	assert.Equal(t, DefaultBaseDelay, cfg.BaseDelay)
}

func TestValidate(t *testing.T) {
	cfg := Config{APIKey: "abc123"}
	assert.NoError(t, cfg.Validate())

	cfg.APIKey = ""
	assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)
}
