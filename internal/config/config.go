package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	instance *Config
	mu       sync.RWMutex
)

// Config is the root configuration structure for the client.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger"`
	Backend BackendConfig `mapstructure:"backend"`
	Widget  WidgetConfig  `mapstructure:"widget"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Poller  PollerConfig  `mapstructure:"poller"`
	Logs    LogsConfig    `mapstructure:"logs"`
	Session SessionConfig `mapstructure:"session"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" json:"level" yaml:"level"`
	Format      string `mapstructure:"format" json:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" json:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" json:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" json:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" json:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" json:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" json:"compress" yaml:"compress"`
}

// BackendConfig holds settings for the first-party backend connection.
type BackendConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryMax   int           `mapstructure:"retry_max"`
	RetryWait  time.Duration `mapstructure:"retry_wait"`
	UserAgent  string        `mapstructure:"user_agent"`
	AdminLimit int           `mapstructure:"admin_limit"`
}

// WidgetConfig describes the third-party verification widget endpoints.
// The widget itself is opaque; only its network client is ours to observe.
type WidgetConfig struct {
	SendURL      string        `mapstructure:"send_url"`
	VerifyURL    string        `mapstructure:"verify_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SendCooldown time.Duration `mapstructure:"send_cooldown"`
}

// AuthConfig holds timings for the bootstrap flow.
type AuthConfig struct {
	WaitDeadline  time.Duration `mapstructure:"wait_deadline"`
	RedirectDelay time.Duration `mapstructure:"redirect_delay"`
}

// PollerConfig holds the adaptive status poller intervals.
type PollerConfig struct {
	ActiveInterval time.Duration `mapstructure:"active_interval"`
	IdleInterval   time.Duration `mapstructure:"idle_interval"`
	ErrorInterval  time.Duration `mapstructure:"error_interval"`
}

// LogsConfig holds settings for the websocket log stream.
type LogsConfig struct {
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
}

// SessionConfig holds settings for the local session store.
type SessionConfig struct {
	Path string `mapstructure:"path"`
}

// SetDefaults registers the defaults so the client can run with an
// empty config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "pangguai")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)

	v.SetDefault("backend.base_url", "http://127.0.0.1:8000")
	v.SetDefault("backend.timeout", 15*time.Second)
	v.SetDefault("backend.retry_max", 3)
	v.SetDefault("backend.retry_wait", time.Second)
	v.SetDefault("backend.admin_limit", 50)

	v.SetDefault("widget.timeout", 15*time.Second)
	v.SetDefault("widget.send_cooldown", 60*time.Second)

	v.SetDefault("auth.wait_deadline", 15*time.Second)
	v.SetDefault("auth.redirect_delay", 1500*time.Millisecond)

	v.SetDefault("poller.active_interval", 3*time.Second)
	v.SetDefault("poller.idle_interval", 10*time.Second)
	v.SetDefault("poller.error_interval", 15*time.Second)

	v.SetDefault("logs.reconnect_delay", 3*time.Second)
}

// Validate checks the parts of the configuration that have no sane
// recovery path at runtime.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url must be set")
	}
	if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		return fmt.Errorf("backend.base_url must be an http(s) URL, got %q", c.Backend.BaseURL)
	}
	if c.Poller.ActiveInterval <= 0 || c.Poller.IdleInterval <= 0 || c.Poller.ErrorInterval <= 0 {
		return fmt.Errorf("poller intervals must be positive")
	}
	if c.Logs.ReconnectDelay <= 0 {
		return fmt.Errorf("logs.reconnect_delay must be positive")
	}
	return nil
}

// Load unmarshals the configuration from Viper and stores it globally.
func Load(v *viper.Viper) error {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	Set(&cfg)
	return nil
}

// Set stores the configuration instance.
func Set(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = cfg
}

// Get returns the loaded configuration instance.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if instance == nil {
		panic("Configuration not initialized. Call config.Load() in the root command.")
	}
	return instance
}
