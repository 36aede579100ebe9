package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apperrors "github.com/placesfinder/placesfinder/internal/errors"
)

const (
	PolicyAbort   = "abort"
	PolicyDegrade = "degrade"

	APIKeyEnv = "GOOGLE_PLACES_API_KEY"
)

// Config holds runtime settings. Environment variables win over the optional
// YAML file named by CONFIG_FILE, which in turn wins over the defaults.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	Environment string `yaml:"environment"`

	Places    PlacesConfig    `yaml:"places"`
	Search    SearchConfig    `yaml:"search"`
	Session   SessionConfig   `yaml:"session"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// PlacesConfig configures the upstream Places web API. APIKey is env-only.
type PlacesConfig struct {
	APIKey      string        `yaml:"-"`
	BaseURL     string        `yaml:"base_url"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

type SearchConfig struct {
	PageTokenDelay    time.Duration `yaml:"page_token_delay"`
	MaxPages          int           `yaml:"max_pages"`
	DetailConcurrency int           `yaml:"detail_concurrency"`
	FailurePolicy     string        `yaml:"failure_policy"`
	DefaultLat        float64       `yaml:"default_lat"`
	DefaultLng        float64       `yaml:"default_lng"`
	DefaultRadius     int           `yaml:"default_radius"`
}

type SessionConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

type RateLimitConfig struct {
	Burst  int           `yaml:"burst"`
	Refill time.Duration `yaml:"refill"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	Rotation bool   `yaml:"rotation"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Password string        `yaml:"-"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"pool_size"`
	CacheTTL time.Duration `yaml:"detail_cache_ttl"`
}

// DatabaseConfig configures the optional search history store; an empty Host disables it.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr:    ":8080",
		Environment: "development",
		Places: PlacesConfig{
			BaseURL:     "https://maps.googleapis.com/maps/api/place",
			HTTPTimeout: 30 * time.Second,
		},
		Search: SearchConfig{
			PageTokenDelay:    2 * time.Second,
			MaxPages:          0,
			DetailConcurrency: 1,
			FailurePolicy:     PolicyAbort,
			DefaultLat:        37.7937,
			DefaultLng:        -122.3965,
			DefaultRadius:     5000,
		},
		Session: SessionConfig{
			TTL:             24 * time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Burst:  5,
			Refill: 2 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     6379,
			PoolSize: 10,
			CacheTTL: 24 * time.Hour,
		},
		Database: DatabaseConfig{
			Port:    "5432",
			SSLMode: "disable",
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "http://localhost:4318",
			ServiceName:  "placesfinder",
		},
	}
}

// LoadDotEnv loads a .env file into the process environment. A missing file is
// reported but not fatal; existing variables are never overwritten.
func LoadDotEnv(paths ...string) error {
	return godotenv.Load(paths...)
}

// Load builds the configuration from defaults, the optional YAML file and the environment.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.HTTPAddr = envOr("HTTP_ADDR", c.HTTPAddr)
	c.Environment = envOr("ENVIRONMENT", c.Environment)

	c.Places.APIKey = strings.TrimSpace(os.Getenv(APIKeyEnv))
	c.Places.BaseURL = strings.TrimRight(envOr("PLACES_BASE_URL", c.Places.BaseURL), "/")

	c.Search.FailurePolicy = strings.ToLower(envOr("ENRICH_FAILURE_POLICY", c.Search.FailurePolicy))

	c.Log.Level = envOr("LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr("LOG_FORMAT", c.Log.Format)
	c.Log.Output = envOr("LOG_OUTPUT", c.Log.Output)

	c.Redis.Host = envOr("REDIS_HOST", c.Redis.Host)
	c.Redis.Password = envOr("REDIS_PASSWORD", c.Redis.Password)

	c.Database.Host = envOr("DB_HOST", c.Database.Host)
	c.Database.Port = envOr("DB_PORT", c.Database.Port)
	c.Database.User = envOr("DB_USER", c.Database.User)
	c.Database.Password = envOr("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = envOr("DB_NAME", c.Database.DBName)
	c.Database.SSLMode = envOr("DB_SSLMODE", c.Database.SSLMode)

	c.Telemetry.OTLPEndpoint = envOr("OTEL_EXPORTER_OTLP_ENDPOINT", c.Telemetry.OTLPEndpoint)
	c.Telemetry.ServiceName = envOr("OTEL_SERVICE_NAME", c.Telemetry.ServiceName)

	var err error
	parse := func(apply func() error) {
		if err == nil {
			err = apply()
		}
	}

	parse(func() error { return envDuration("PLACES_HTTP_TIMEOUT", &c.Places.HTTPTimeout) })
	parse(func() error { return envDuration("PAGE_TOKEN_DELAY", &c.Search.PageTokenDelay) })
	parse(func() error { return envInt("MAX_PAGES", &c.Search.MaxPages) })
	parse(func() error { return envInt("DETAIL_CONCURRENCY", &c.Search.DetailConcurrency) })
	parse(func() error { return envFloat("DEFAULT_LAT", &c.Search.DefaultLat) })
	parse(func() error { return envFloat("DEFAULT_LNG", &c.Search.DefaultLng) })
	parse(func() error { return envInt("DEFAULT_RADIUS", &c.Search.DefaultRadius) })
	parse(func() error { return envDuration("SESSION_TTL", &c.Session.TTL) })
	parse(func() error { return envDuration("SESSION_CLEANUP_INTERVAL", &c.Session.CleanupInterval) })
	parse(func() error { return envInt("RATE_LIMIT_BURST", &c.RateLimit.Burst) })
	parse(func() error { return envDuration("RATE_LIMIT_REFILL", &c.RateLimit.Refill) })
	parse(func() error { return envBool("LOG_ROTATION", &c.Log.Rotation) })
	parse(func() error { return envBool("REDIS_ENABLED", &c.Redis.Enabled) })
	parse(func() error { return envInt("REDIS_PORT", &c.Redis.Port) })
	parse(func() error { return envInt("REDIS_DB", &c.Redis.DB) })
	parse(func() error { return envInt("REDIS_POOL_SIZE", &c.Redis.PoolSize) })
	parse(func() error { return envDuration("DETAIL_CACHE_TTL", &c.Redis.CacheTTL) })
	parse(func() error { return envBool("OTEL_ENABLED", &c.Telemetry.Enabled) })

	return err
}

// Validate checks settings that would make the service misbehave. A missing
// API key is deliberately not checked here: it is reported to the user as a
// configuration state and blocks searches, not startup.
func (c Config) Validate() error {
	switch c.Search.FailurePolicy {
	case PolicyAbort, PolicyDegrade:
	default:
		return apperrors.NewConfigurationError("ENRICH_FAILURE_POLICY",
			fmt.Sprintf("unknown enrichment failure policy %q", c.Search.FailurePolicy))
	}
	if c.Search.PageTokenDelay < 0 {
		return apperrors.NewConfigurationError("PAGE_TOKEN_DELAY", "page token delay must not be negative")
	}
	if c.Search.MaxPages < 0 {
		return apperrors.NewConfigurationError("MAX_PAGES", "max pages must not be negative")
	}
	if c.Search.DetailConcurrency < 1 {
		return apperrors.NewConfigurationError("DETAIL_CONCURRENCY", "detail concurrency must be at least 1")
	}
	if c.Search.DefaultLat < -90 || c.Search.DefaultLat > 90 {
		return apperrors.NewConfigurationError("DEFAULT_LAT", "default latitude must be within [-90, 90]")
	}
	if c.Search.DefaultLng < -180 || c.Search.DefaultLng > 180 {
		return apperrors.NewConfigurationError("DEFAULT_LNG", "default longitude must be within [-180, 180]")
	}
	if c.Search.DefaultRadius < 1000 || c.Search.DefaultRadius > 50000 || c.Search.DefaultRadius%1000 != 0 {
		return apperrors.NewConfigurationError("DEFAULT_RADIUS", "default radius must be 1000-50000 in steps of 1000")
	}
	if c.Places.BaseURL == "" {
		return apperrors.NewConfigurationError("PLACES_BASE_URL", "places base URL is required")
	}
	if c.Session.TTL <= 0 {
		return apperrors.NewConfigurationError("SESSION_TTL", "session TTL must be positive")
	}
	if c.Session.CleanupInterval <= 0 {
		return apperrors.NewConfigurationError("SESSION_CLEANUP_INTERVAL", "session cleanup interval must be positive")
	}
	return nil
}

// HasAPIKey reports whether a non-empty Places API key was configured.
func (c Config) HasAPIKey() bool {
	return c.Places.APIKey != ""
}

// DatabaseEnabled reports whether search history persistence is configured.
func (c Config) DatabaseEnabled() bool {
	return c.Database.Host != ""
}

// IsDevelopment returns true if running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, dst *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return apperrors.NewConfigurationError(key, fmt.Sprintf("%s must be an integer, got %q", key, value))
	}
	*dst = parsed
	return nil
}

func envFloat(key string, dst *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return apperrors.NewConfigurationError(key, fmt.Sprintf("%s must be a number, got %q", key, value))
	}
	*dst = parsed
	return nil
}

func envBool(key string, dst *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return apperrors.NewConfigurationError(key, fmt.Sprintf("%s must be a boolean, got %q", key, value))
	}
	*dst = parsed
	return nil
}

// envDuration accepts Go duration strings ("2s") or bare integers as seconds.
func envDuration(key string, dst *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		*dst = time.Duration(seconds) * time.Second
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return apperrors.NewConfigurationError(key, fmt.Sprintf("%s must be a duration, got %q", key, value))
	}
	*dst = parsed
	return nil
}
