package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	// Managed backend (identity + document store)
	Backend BackendConfig

	// Local state database
	Database DatabaseConfig

	// Redis (task queue)
	Redis RedisConfig

	// Logging
	Logging LoggingConfig

	// Dev inference proxy
	Proxy ProxyConfig
}

// BackendConfig holds the managed backend configuration
type BackendConfig struct {
	// Base URL of the identity/document backend, e.g. "https://backend.studyhall.dev"
	URL string
	// API key sent with every backend request
	APIKey string
}

// DatabaseConfig holds local database configuration
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address string // Redis address (host:port)
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// ProxyConfig holds the dev inference proxy configuration.
// When Upstream is empty the proxy route is not registered.
type ProxyConfig struct {
	PathPrefix string        `yaml:"path_prefix"`
	Upstream   string        `yaml:"upstream"`
	Timeout    time.Duration `yaml:"timeout"`
}

// proxyFile is the optional YAML overlay for the proxy block
type proxyFile struct {
	Proxy ProxyConfig `yaml:"proxy"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	backendURL := os.Getenv("BACKEND_URL")
	if backendURL == "" {
		backendURL = "http://localhost:9099"
	}

	// Local database - default to studyhall.sqlite, allow override for dev
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = "studyhall.sqlite"
	}

	// Redis address - default to localhost:6379, allow override for dev/docker
	redisAddr := os.Getenv("REDIS_ADDRESS")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "json"
	}

	cfg := &Config{
		Backend: BackendConfig{
			URL:    backendURL,
			APIKey: os.Getenv("BACKEND_API_KEY"),
		},
		Database: DatabaseConfig{
			URL: dbURL,
		},
		Redis: RedisConfig{
			Address: redisAddr,
		},
		Logging: LoggingConfig{
			Level:  logLevel,
			Format: logFormat,
		},
		Proxy: ProxyConfig{
			PathPrefix: "/api/infer",
			Upstream:   os.Getenv("INFER_UPSTREAM"),
			// Inference calls are slow; default well above normal HTTP timeouts
			Timeout: 5 * time.Minute,
		},
	}

	if err := loadProxyOverlay(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadProxyOverlay merges the optional studyhall.yaml proxy block over defaults
func loadProxyOverlay(cfg *Config) error {
	path := os.Getenv("STUDYHALL_CONFIG")
	if path == "" {
		path = "studyhall.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var overlay proxyFile
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if overlay.Proxy.PathPrefix != "" {
		cfg.Proxy.PathPrefix = overlay.Proxy.PathPrefix
	}
	if overlay.Proxy.Upstream != "" {
		cfg.Proxy.Upstream = overlay.Proxy.Upstream
	}
	if overlay.Proxy.Timeout > 0 {
		cfg.Proxy.Timeout = overlay.Proxy.Timeout
	}

	return nil
}
