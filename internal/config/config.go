// Package config loads and validates the ingest service configuration.
// Values come from an optional YAML file with environment variables
// taking precedence for the operational knobs.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the full configuration of the ingest API.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Render  RenderConfig  `yaml:"render"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Cache   CacheConfig   `yaml:"cache"`
	Extract ExtractConfig `yaml:"extract"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// RenderConfig describes the remote rendering dependency and the
// optional local chromedp engine.
type RenderConfig struct {
	Engine   string   `yaml:"engine"` // "remote" or "chromedp"
	BaseURL  string   `yaml:"base_url"`
	Token    string   `yaml:"token"`
	Timeout  Duration `yaml:"timeout"`
	MaxWait  Duration `yaml:"max_wait"`
	Sessions int      `yaml:"sessions"` // chromedp concurrency
}

// FetchConfig controls retries, backoff, body limits, and the guard
// applied before outbound requests.
type FetchConfig struct {
	MaxAttempts    int      `yaml:"max_attempts"`
	InitialBackoff Duration `yaml:"initial_backoff"`
	BackoffFactor  float64  `yaml:"backoff_factor"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes"`
	UserAgent      string   `yaml:"user_agent"`
	SSRFGuard      bool     `yaml:"ssrf_guard"`
	RatePerSecond  float64  `yaml:"rate_per_second"`
	RateBurst      int      `yaml:"rate_burst"`
	WallClockWarn  Duration `yaml:"wall_clock_warn"`
}

// CacheConfig sizes the rendered-HTML cache.
type CacheConfig struct {
	Backend  string      `yaml:"backend"` // "memory" or "redis"
	TTL      Duration    `yaml:"ttl"`
	MaxItems int         `yaml:"max_items"`
	Redis    RedisConfig `yaml:"redis"`
}

// RedisConfig describes the optional Redis cache backend.
type RedisConfig struct {
	Host     string   `yaml:"host"`
	Port     string   `yaml:"port"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	Key      string   `yaml:"key"`
	Timeout  Duration `yaml:"timeout"`
}

// ExtractConfig tunes the harvesters.
type ExtractConfig struct {
	MinImagePx  int  `yaml:"min_image_px"`
	ExcludePNG  bool `yaml:"exclude_png"`
	MaxImages   int  `yaml:"max_images"`
	MaxFeatures int  `yaml:"max_features"`
}

// LoggingConfig selects log verbosity, format, and optional rotation.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: DurationFrom(15 * time.Second),
		},
		Render: RenderConfig{
			Engine:   "remote",
			Timeout:  DurationFrom(25 * time.Second),
			MaxWait:  DurationFrom(60 * time.Second),
			Sessions: 2,
		},
		Fetch: FetchConfig{
			MaxAttempts:    3,
			InitialBackoff: DurationFrom(600 * time.Millisecond),
			BackoffFactor:  1.8,
			MaxBodyBytes:   6 * 1024 * 1024,
			UserAgent:      "medx-ingest-bot/1.0",
			SSRFGuard:      true,
			RatePerSecond:  4,
			RateBurst:      8,
			WallClockWarn:  DurationFrom(45 * time.Second),
		},
		Cache: CacheConfig{
			Backend:  "memory",
			TTL:      DurationFrom(10 * time.Minute),
			MaxItems: 100,
		},
		Extract: ExtractConfig{
			MinImagePx:  200,
			ExcludePNG:  false,
			MaxImages:   12,
			MaxFeatures: 20,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Structured: true,
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
	}
}

// Load reads, merges, and validates configuration. The path may be
// empty, in which case defaults plus environment overrides apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fh, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer fh.Close()
		if err := decodeYAML(fh, &cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromReader decodes configuration from an arbitrary reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, &cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// applyEnv overlays environment knobs onto the config. Environment
// wins over file values; unset variables leave the config untouched.
func (c *Config) applyEnv() {
	setString(&c.Render.BaseURL, "RENDER_API_URL")
	setString(&c.Render.Token, "RENDER_API_TOKEN")
	setString(&c.Render.Engine, "RENDER_ENGINE")
	setDurationMS(&c.Render.Timeout, "DEFAULT_TIMEOUT_MS")
	setDurationMS(&c.Render.MaxWait, "MAX_TIMEOUT_MS")
	setInt64(&c.Fetch.MaxBodyBytes, "MAX_HTML_BYTES")
	setInt(&c.Fetch.MaxAttempts, "FETCH_MAX_ATTEMPTS")
	setDurationMS(&c.Cache.TTL, "CACHE_TTL_MS")
	setInt(&c.Cache.MaxItems, "CACHE_MAX_ITEMS")
	setString(&c.Cache.Backend, "CACHE_BACKEND")
	setString(&c.Cache.Redis.Host, "REDIS_HOST")
	setString(&c.Cache.Redis.Port, "REDIS_PORT")
	setString(&c.Cache.Redis.Password, "REDIS_PASSWORD")
	setInt(&c.Extract.MinImagePx, "MIN_IMAGE_PX")
	setBool(&c.Extract.ExcludePNG, "EXCLUDE_PNG")
	setBool(&c.Fetch.SSRFGuard, "SSRF_GUARD")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.File, "LOG_FILE")
	setString(&c.Server.Addr, "LISTEN_ADDR")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDurationMS(dst *Duration, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = DurationFrom(time.Duration(n) * time.Millisecond)
		}
	}
}

// Validate enforces required invariants for the ingest configuration.
func (c Config) Validate() error {
	if c.Fetch.MaxAttempts <= 0 {
		return fmt.Errorf("fetch.max_attempts must be > 0 (got %d)", c.Fetch.MaxAttempts)
	}
	if c.Fetch.BackoffFactor < 1 {
		return fmt.Errorf("fetch.backoff_factor must be >= 1 (got %g)", c.Fetch.BackoffFactor)
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch.max_body_bytes must be > 0 (got %d)", c.Fetch.MaxBodyBytes)
	}
	if strings.TrimSpace(c.Fetch.UserAgent) == "" {
		return errors.New("fetch.user_agent must be set")
	}
	if c.Cache.TTL.Duration < 0 {
		return errors.New("cache.ttl must not be negative")
	}
	if c.Cache.MaxItems <= 0 {
		return fmt.Errorf("cache.max_items must be > 0 (got %d)", c.Cache.MaxItems)
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Host) == "" {
			return errors.New("cache.redis.host must be set when cache.backend is redis")
		}
	default:
		return fmt.Errorf("unsupported cache backend %q", c.Cache.Backend)
	}
	switch c.Render.Engine {
	case "remote":
		if strings.TrimSpace(c.Render.BaseURL) == "" {
			return errors.New("render.base_url must be set when render.engine is remote")
		}
	case "chromedp", "chrome":
	default:
		return fmt.Errorf("unsupported render engine %q", c.Render.Engine)
	}
	if c.Extract.MinImagePx < 0 {
		return fmt.Errorf("extract.min_image_px must be >= 0 (got %d)", c.Extract.MinImagePx)
	}
	if c.Extract.MaxImages <= 0 || c.Extract.MaxFeatures <= 0 {
		return errors.New("extract.max_images and extract.max_features must be > 0")
	}
	return nil
}

func (c *Config) normalise() {
	c.Render.Engine = strings.ToLower(strings.TrimSpace(c.Render.Engine))
	c.Render.BaseURL = strings.TrimRight(strings.TrimSpace(c.Render.BaseURL), "/")
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
}
