package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	cfg.Render.BaseURL = "http://render.internal:3000"
	cfg.normalise()
	require.NoError(t, cfg.Validate())
}

func TestLoadFromReader(t *testing.T) {
	yaml := `
render:
  base_url: http://render.internal:3000/
  token: secret
  timeout: 10s
fetch:
  max_attempts: 4
  initial_backoff: 500ms
cache:
  ttl: 2m
  max_items: 25
extract:
  min_image_px: 300
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	require.NoError(t, err)
	assert.Equal(t, "http://render.internal:3000", cfg.Render.BaseURL)
	assert.Equal(t, 4, cfg.Fetch.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Fetch.InitialBackoff.Duration)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL.Duration)
	assert.Equal(t, 25, cfg.Cache.MaxItems)
	assert.Equal(t, 300, cfg.Extract.MinImagePx)
	// untouched defaults survive the merge
	assert.Equal(t, 1.8, cfg.Fetch.BackoffFactor)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("RENDER_API_URL", "http://env-render:9000")
	t.Setenv("CACHE_TTL_MS", "60000")
	t.Setenv("MIN_IMAGE_PX", "150")
	t.Setenv("SSRF_GUARD", "false")

	cfg, err := LoadFromReader(strings.NewReader("render:\n  base_url: http://file-render:3000\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://env-render:9000", cfg.Render.BaseURL)
	assert.Equal(t, time.Minute, cfg.Cache.TTL.Duration)
	assert.Equal(t, 150, cfg.Extract.MinImagePx)
	assert.False(t, cfg.Fetch.SSRFGuard)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero attempts", func(c *Config) { c.Fetch.MaxAttempts = 0 }},
		{"backoff factor below one", func(c *Config) { c.Fetch.BackoffFactor = 0.5 }},
		{"zero body limit", func(c *Config) { c.Fetch.MaxBodyBytes = 0 }},
		{"empty user agent", func(c *Config) { c.Fetch.UserAgent = " " }},
		{"zero cache items", func(c *Config) { c.Cache.MaxItems = 0 }},
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"remote engine without url", func(c *Config) { c.Render.BaseURL = "" }},
		{"unknown engine", func(c *Config) { c.Render.Engine = "phantomjs" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Render.BaseURL = "http://render.internal:3000"
			tt.mutate(&cfg)
			cfg.normalise()
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDurationYAMLForms(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader("cache:\n  ttl: 90\n"))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL.Duration)
}
