// Package config loads the server configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig contains server-level settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// DatabaseConfig contains the PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// AuthConfig contains the passkey relying party and session settings.
type AuthConfig struct {
	RPID          string   `yaml:"rp_id"`
	RPDisplayName string   `yaml:"rp_display_name"`
	RPOrigins     []string `yaml:"rp_origins"`

	// SessionSecret signs session tokens. Rotating it invalidates all
	// outstanding sessions.
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`

	// SecureCookies marks the session cookie Secure; disable only for
	// local development over plain HTTP.
	SecureCookies bool `yaml:"secure_cookies"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// RateLimitConfig throttles the unauthenticated endpoints per client IP.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Host: "0.0.0.0", Port: 8080},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Auth: AuthConfig{
			RPID:          "localhost",
			RPDisplayName: "Regeester",
			RPOrigins:     []string{"http://localhost:8080"},
			SecureCookies: true,
		},
		Metrics: MetricsConfig{Enabled: true},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 120,
			Burst:             30,
		},
	}
}

// Load reads configuration from a YAML file and applies environment variable
// overrides. An empty path starts from Default.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304 - Config file path is provided by admin/user
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if host := os.Getenv("REGEESTER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("REGEESTER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if level := os.Getenv("REGEESTER_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("REGEESTER_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if secret := os.Getenv("REGEESTER_SESSION_SECRET"); secret != "" {
		cfg.Auth.SessionSecret = secret
	}
	if rpID := os.Getenv("REGEESTER_RP_ID"); rpID != "" {
		cfg.Auth.RPID = rpID
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn must be specified")
	}
	if c.Auth.SessionSecret == "" {
		return fmt.Errorf("session secret must be specified")
	}
	if c.Auth.RPID == "" {
		return fmt.Errorf("relying party id must be specified")
	}
	if len(c.Auth.RPOrigins) == 0 {
		return fmt.Errorf("at least one relying party origin must be specified")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate limit requests per minute must be positive")
	}
	return nil
}

// Logger builds a slog.Logger per the logging settings.
func (c *LoggingConfig) Logger() *slog.Logger {
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if c.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
