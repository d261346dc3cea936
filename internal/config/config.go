package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"property-search/internal/retry"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	Retry     RetryConfig     `yaml:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Session   SessionConfig   `yaml:"session"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains HTTP listener settings
type ServerConfig struct {
	Port        string   `yaml:"port"`
	GinMode     string   `yaml:"gin_mode"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// BackendConfig contains the property API settings
type BackendConfig struct {
	BaseURL             string `yaml:"base_url"`
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
	BreakerEnabled      bool   `yaml:"breaker_enabled"`
	BreakerThreshold    int    `yaml:"breaker_threshold"`
	BreakerResetSeconds int    `yaml:"breaker_reset_seconds"`
}

// RetryConfig contains backoff settings for backend calls
type RetryConfig struct {
	Enabled        bool    `yaml:"enabled"`
	MaxRetries     int     `yaml:"max_retries"`
	InitialDelayMs int     `yaml:"initial_delay_ms"`
	MaxDelayMs     int     `yaml:"max_delay_ms"`
	Jitter         float64 `yaml:"jitter"`
}

// RateLimitConfig contains per-client request limits
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	RequestsPerHour   int  `yaml:"requests_per_hour"`
}

// SessionConfig contains search view session settings
type SessionConfig struct {
	CookieName    string `yaml:"cookie_name"`
	TTLMinutes    int    `yaml:"ttl_minutes"`
	MaxSessions   int    `yaml:"max_sessions"`
	SweepSchedule string `yaml:"sweep_schedule"`
}

// MonitorConfig contains backend health probe settings
type MonitorConfig struct {
	Enabled             bool   `yaml:"enabled"`
	ProbeSchedule       string `yaml:"probe_schedule"`
	ProbeTimeoutSeconds int    `yaml:"probe_timeout_seconds"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	Color       bool   `yaml:"color"`
	LogRequests bool   `yaml:"log_requests"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "3000",
			GinMode:     "release",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Backend: BackendConfig{
			BaseURL:             "http://localhost:8000",
			TimeoutSeconds:      10,
			BreakerEnabled:      true,
			BreakerThreshold:    5,
			BreakerResetSeconds: 30,
		},
		Retry: RetryConfig{
			Enabled:        true,
			MaxRetries:     retry.DefaultMaxRetries,
			InitialDelayMs: 1000,
			MaxDelayMs:     30000,
			Jitter:         retry.DefaultJitter,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 120,
			RequestsPerHour:   3000,
		},
		Session: SessionConfig{
			CookieName:    "search_session",
			TTLMinutes:    30,
			MaxSessions:   10000,
			SweepSchedule: "@every 5m",
		},
		Monitor: MonitorConfig{
			Enabled:             true,
			ProbeSchedule:       "@every 30s",
			ProbeTimeoutSeconds: 3,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "text",
			Color:       true,
			LogRequests: true,
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filepath string) (*Config, error) {
	// Start with default config
	config := DefaultConfig()

	// If file doesn't exist, return default config
	if _, err := os.Stat(filepath); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the environment.
// Missing files are skipped; variables already set are left alone.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides config values with environment variables when they are set.
func (c *Config) ApplyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.GinMode = getEnv("GIN_MODE", c.Server.GinMode)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.Server.CORSOrigins = splitList(origins)
	}
	c.Backend.BaseURL = getEnv("BACKEND_URL", c.Backend.BaseURL)
	c.Backend.TimeoutSeconds = getEnvInt("BACKEND_TIMEOUT_SECONDS", c.Backend.TimeoutSeconds)
	c.Retry.MaxRetries = getEnvInt("RETRY_MAX_RETRIES", c.Retry.MaxRetries)
	c.Retry.InitialDelayMs = getEnvInt("RETRY_INITIAL_DELAY_MS", c.Retry.InitialDelayMs)
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	} else if _, err := strconv.Atoi(c.Server.Port); err != nil {
		errs = append(errs, fmt.Errorf("server.port %q is not a number", c.Server.Port))
	}
	switch c.Server.GinMode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		errs = append(errs, fmt.Errorf("server.gin_mode %q must be one of debug, release, test", c.Server.GinMode))
	}
	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend.base_url %q is not an absolute URL", c.Backend.BaseURL))
	}
	if c.Backend.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("backend.timeout_seconds must be positive"))
	}
	if c.Retry.MaxRetries < 0 {
		errs = append(errs, errors.New("retry.max_retries must not be negative"))
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		errs = append(errs, errors.New("retry.jitter must be between 0 and 1"))
	}
	if c.Session.TTLMinutes <= 0 {
		errs = append(errs, errors.New("session.ttl_minutes must be positive"))
	}
	if c.Session.MaxSessions <= 0 {
		errs = append(errs, errors.New("session.max_sessions must be positive"))
	}
	return errors.Join(errs...)
}

// GetTimeout returns the backend timeout as a duration
func (c *BackendConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GetBreakerReset returns the breaker reset timeout as a duration
func (c *BackendConfig) GetBreakerReset() time.Duration {
	return time.Duration(c.BreakerResetSeconds) * time.Second
}

// Policy converts the retry section into a retry.Policy
func (c *RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxRetries:   c.MaxRetries,
		InitialDelay: time.Duration(c.InitialDelayMs) * time.Millisecond,
		MaxDelay:     time.Duration(c.MaxDelayMs) * time.Millisecond,
		Jitter:       c.Jitter,
	}
}

// GetTTL returns the session lifetime as a duration
func (c *SessionConfig) GetTTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// GetProbeTimeout returns the health probe timeout as a duration
func (c *MonitorConfig) GetProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSeconds) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
