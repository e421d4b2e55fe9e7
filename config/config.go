package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DirectoryConfig describes the origin directory page and how it is fetched
type DirectoryConfig struct {
	URL               string        `mapstructure:"url"`
	UserAgent         string        `mapstructure:"user_agent"`
	AcceptLanguage    string        `mapstructure:"accept_language"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	BaseBackoff       time.Duration `mapstructure:"base_backoff"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	TTL               time.Duration `mapstructure:"ttl"`
	ServeStaleOnError bool          `mapstructure:"serve_stale_on_error"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute, 0 disables
}

// Load loads configuration from a .env file, environment variables and config files
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/firmscout/")

	v.SetEnvPrefix("FIRMSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// PORT is what most hosting platforms inject.
	if err := v.BindEnv("server.port", "FIRMSCOUT_SERVER_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("error binding port: %w", err)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Directory defaults
	v.SetDefault("directory.url", "https://khasteknopark.com.tr/firmalar/")
	v.SetDefault("directory.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("directory.accept_language", "tr-TR,tr;q=0.9")
	v.SetDefault("directory.timeout", "30s")
	v.SetDefault("directory.max_retries", 3)
	v.SetDefault("directory.base_backoff", "1s")
	v.SetDefault("directory.requests_per_second", 1.0)

	// Cache defaults
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.serve_stale_on_error", false)

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 60)
}

// validate validates the configuration
func validate(config *Config) error {
	u, err := url.Parse(config.Directory.URL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("directory URL must be an absolute http(s) URL, got: %q", config.Directory.URL)
	}

	if config.Directory.Timeout <= 0 {
		return fmt.Errorf("directory timeout must be positive, got: %s", config.Directory.Timeout)
	}

	if config.Directory.MaxRetries < 1 {
		return fmt.Errorf("directory max retries must be at least 1, got: %d", config.Directory.MaxRetries)
	}

	if config.Directory.BaseBackoff < 0 {
		return fmt.Errorf("directory base backoff must not be negative, got: %s", config.Directory.BaseBackoff)
	}

	if config.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got: %s", config.Cache.TTL)
	}

	if config.RateLimit.PerIP < 0 {
		return fmt.Errorf("per-IP rate limit must not be negative, got: %d", config.RateLimit.PerIP)
	}

	return nil
}
