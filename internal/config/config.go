package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Shop      ShopConfig      `json:"shop"`
	Cart      CartConfig      `json:"cart"`
	Reconcile ReconcileConfig `json:"reconcile"`
	Security  SecurityConfig  `json:"security"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Tracing   TracingConfig   `json:"tracing"`
	Redis     RedisConfig     `json:"redis"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port string `json:"port"`
	Host string `json:"host"`
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// ShopConfig identifies the shop and its timezone.
type ShopConfig struct {
	// Default shop key for requests that don't name one.
	Name string `json:"name"`
	// Shop-local UTC offset in minutes, applied to date windows.
	TZOffsetMinutes int `json:"tz_offset_minutes"`
}

// CartConfig holds storefront cart API configuration.
type CartConfig struct {
	BaseURL string `json:"base_url"`
	// Cart snapshot cache in milliseconds.
	CacheTTLMillis int `json:"cache_ttl_millis"`
	// Max cart/campaign reads per second; 0 disables the limit.
	FetchRatePerSecond float64 `json:"fetch_rate_per_second"`
}

// ReconcileConfig tunes the cart reconciler.
type ReconcileConfig struct {
	DebounceMillis     int `json:"debounce_millis"`
	SettleDelayMillis  int `json:"settle_delay_millis"`
	VerifyDelayMillis  int `json:"verify_delay_millis"`
	MaxAttempts        int `json:"max_attempts"`
	RetryBackoffMillis int `json:"retry_backoff_millis"`
	CampaignTTLSeconds int `json:"campaign_ttl_seconds"`
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	MaxRequestBodySize int64  `json:"max_request_body_size"`
	AllowedOrigins     string `json:"allowed_origins"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool `json:"enabled"`
	Rate    int  `json:"rate"`
	Window  int  `json:"window"` // seconds
}

// TracingConfig holds tracing configuration.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	Endpoint    string `json:"endpoint"`
	Environment string `json:"environment"`
}

// RedisConfig enables the shared campaign cache; empty Addr selects the
// in-memory cache.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// Load builds configuration from defaults, an optional JSON file, and
// environment variable overrides (env wins).
func Load(configFile string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "",
		},
		Database: DatabaseConfig{
			Path: "./cart_promotions.db",
		},
		Shop: ShopConfig{
			Name:            "default",
			TZOffsetMinutes: 0,
		},
		Cart: CartConfig{
			BaseURL:            "http://localhost:9292",
			CacheTTLMillis:     500,
			FetchRatePerSecond: 0,
		},
		Reconcile: ReconcileConfig{
			DebounceMillis:     200,
			SettleDelayMillis:  600,
			VerifyDelayMillis:  400,
			MaxAttempts:        3,
			RetryBackoffMillis: 250,
			CampaignTTLSeconds: 60,
		},
		Security: SecurityConfig{
			MaxRequestBodySize: 10 << 20,
			AllowedOrigins:     "*",
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Rate:    100,
			Window:  60,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Environment: "development",
		},
	}

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	overrideFromEnv(cfg)

	return cfg, nil
}

// loadFromFile loads configuration from a JSON file.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, cfg)
}

// overrideFromEnv overrides configuration with environment variables.
func overrideFromEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SERVER_PORT")
	setString(&cfg.Server.Host, "SERVER_HOST")
	setString(&cfg.Database.Path, "DATABASE_PATH")
	setString(&cfg.Shop.Name, "SHOP_NAME")
	setInt(&cfg.Shop.TZOffsetMinutes, "SHOP_TZ_OFFSET_MINUTES")
	setString(&cfg.Cart.BaseURL, "CART_BASE_URL")
	setInt(&cfg.Cart.CacheTTLMillis, "CART_CACHE_TTL_MILLIS")
	setInt(&cfg.Reconcile.DebounceMillis, "RECONCILE_DEBOUNCE_MILLIS")
	setInt(&cfg.Reconcile.SettleDelayMillis, "RECONCILE_SETTLE_DELAY_MILLIS")
	setInt(&cfg.Reconcile.VerifyDelayMillis, "RECONCILE_VERIFY_DELAY_MILLIS")
	setInt(&cfg.Reconcile.MaxAttempts, "RECONCILE_MAX_ATTEMPTS")
	setInt(&cfg.Reconcile.RetryBackoffMillis, "RECONCILE_RETRY_BACKOFF_MILLIS")
	setInt(&cfg.Reconcile.CampaignTTLSeconds, "RECONCILE_CAMPAIGN_TTL_SECONDS")
	setInt64(&cfg.Security.MaxRequestBodySize, "MAX_REQUEST_BODY_SIZE")
	setString(&cfg.Security.AllowedOrigins, "ALLOWED_ORIGINS")
	setBool(&cfg.RateLimit.Enabled, "RATE_LIMIT_ENABLED")
	setInt(&cfg.RateLimit.Rate, "RATE_LIMIT_RATE")
	setInt(&cfg.RateLimit.Window, "RATE_LIMIT_WINDOW")
	setBool(&cfg.Tracing.Enabled, "TRACING_ENABLED")
	setString(&cfg.Tracing.Endpoint, "TRACING_ENDPOINT")
	setString(&cfg.Tracing.Environment, "TRACING_ENVIRONMENT")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.ToLower(v) == "true" || v == "1"
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = i
		}
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Shop.Name == "" {
		return fmt.Errorf("shop name is required")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Rate <= 0 {
			return fmt.Errorf("rate limit rate must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing endpoint is required when tracing is enabled")
	}
	return nil
}
