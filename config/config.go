// Package config defines the application configuration, its validation
// rules, and a thread-safe wrapper for live access.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Storage mode constants
const (
	StorageModeMemory = "memory" // no persistence, in-memory event log only
	StorageModeFile   = "file"   // local filesystem store (default)
	StorageModeNATS   = "nats"   // shared NATS JetStream KV bucket
)

// Config represents the complete application configuration.
type Config struct {
	Version       string              `json:"version"` // semantic version of the config schema
	Server        ServerConfig        `json:"server"`
	Client        ClientConfig        `json:"client"`
	Cache         CacheConfig         `json:"cache"`
	Notifications NotificationsConfig `json:"notifications"`
	Analytics     AnalyticsConfig     `json:"analytics"`
	Storage       StorageConfig       `json:"storage"`
	Metrics       MetricsConfig       `json:"metrics"`
	Logging       LoggingConfig       `json:"logging"`
}

// ServerConfig defines the dashboard gateway listener.
type ServerConfig struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port"`

	ReadTimeout  time.Duration `json:"read_timeout,omitempty"`
	WriteTimeout time.Duration `json:"write_timeout,omitempty"`
}

// ClientConfig defines the outbound content API connection.
type ClientConfig struct {
	BaseURL   string        `json:"base_url"`
	APIPrefix string        `json:"api_prefix,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty"`
	RateLimit float64       `json:"rate_limit,omitempty"`
	RateBurst int           `json:"rate_burst,omitempty"`

	// MaxRetries is the number of extra attempts for transient
	// backend failures. Zero disables retrying.
	MaxRetries int `json:"max_retries,omitempty"`
}

// CacheConfig bounds the content cache and fetch coordination.
type CacheConfig struct {
	// MaxSize bounds the content cache. Zero disables caching.
	MaxSize int `json:"max_size"`

	// FetchTimeout force-clears a hung fetch's loading flag.
	FetchTimeout time.Duration `json:"fetch_timeout,omitempty"`
}

// NotificationsConfig overrides notification auto-hide delays.
type NotificationsConfig struct {
	ErrorAutoHide   time.Duration `json:"error_auto_hide,omitempty"`
	SuccessAutoHide time.Duration `json:"success_auto_hide,omitempty"`
}

// AnalyticsConfig controls the local event log.
type AnalyticsConfig struct {
	Enabled bool `json:"enabled"`
}

// StorageConfig selects where the event log persists.
type StorageConfig struct {
	Mode string `json:"mode"`

	// Dir is the local store directory. Used in file mode.
	Dir string `json:"dir,omitempty"`

	// NATS settings. Used in nats mode.
	URL    string `json:"url,omitempty"`
	Bucket string `json:"bucket,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port,omitempty"`
}

// LoggingConfig controls structured logging output.
type LoggingConfig struct {
	Level  string `json:"level,omitempty"`  // debug, info, warn, error
	Format string `json:"format,omitempty"` // json, text
}

// Default returns a configuration with working local defaults.
func Default() *Config {
	return &Config{
		Version: "1.0.0",
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Client: ClientConfig{
			BaseURL:   "http://localhost:8000",
			APIPrefix: "/api/v1",
			Timeout:   30 * time.Second,
		},
		Cache: CacheConfig{
			MaxSize:      50,
			FetchTimeout: 30 * time.Second,
		},
		Analytics: AnalyticsConfig{Enabled: true},
		Storage: StorageConfig{
			Mode: StorageModeFile,
			Dir:  "./data",
		},
		Metrics: MetricsConfig{Enabled: true, Port: 9090},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads and validates a JSON config file. Missing optional fields
// are filled from Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the config section by section and normalizes
// case-insensitive fields.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	if c.Client.BaseURL == "" {
		return errors.New("client.base_url is required")
	}

	if c.Cache.MaxSize < 0 {
		return fmt.Errorf("cache.max_size cannot be negative: %d", c.Cache.MaxSize)
	}

	c.Storage.Mode = strings.ToLower(c.Storage.Mode)
	switch c.Storage.Mode {
	case StorageModeMemory:
	case StorageModeFile:
		if c.Storage.Dir == "" {
			return errors.New("storage.dir is required in file mode")
		}
	case StorageModeNATS:
		if c.Storage.URL == "" {
			return errors.New("storage.url is required in nats mode")
		}
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket is required in nats mode")
		}
	default:
		return fmt.Errorf("storage.mode %q is not one of memory, file, nats", c.Storage.Mode)
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port %d out of range", c.Metrics.Port)
	}

	c.Logging.Level = strings.ToLower(c.Logging.Level)
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	c.Logging.Format = strings.ToLower(c.Logging.Format)
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format %q is not one of json, text", c.Logging.Format)
	}

	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// SafeConfig provides thread-safe access to configuration.
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper.
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation.
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}
