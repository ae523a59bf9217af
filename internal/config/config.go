// Package config loads gateway configuration from YAML, environment
// variables (MAILBOARD_ prefix), and built-in defaults, with optional hot
// reload of the config file.
package config

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var (
	cfg      *Config
	watchers []func(*Config)
	mu       sync.RWMutex
)

// Config represents the application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Events   EventsConfig   `mapstructure:"events"`
	Sampler  SamplerConfig  `mapstructure:"sampler"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type AppConfig struct {
	Name  string `mapstructure:"name"`
	Env   string `mapstructure:"env"`
	Debug bool   `mapstructure:"debug"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite3 or postgres
	DSN    string `mapstructure:"dsn"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// EventsConfig carries the event channel knobs shared by the gateway and
// the CLI client.
type EventsConfig struct {
	URL          string          `mapstructure:"url"`
	PingInterval time.Duration   `mapstructure:"ping_interval"`
	Reconnect    ReconnectConfig `mapstructure:"reconnect"`
}

type ReconnectConfig struct {
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	Multiplier   float64       `mapstructure:"multiplier"`
}

type SamplerConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	QueueSchedule  string `mapstructure:"queue_schedule"`
	SystemSchedule string `mapstructure:"system_schedule"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "mailboard")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", false)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "./mailboard.db")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 12*time.Hour)

	v.SetDefault("events.url", "ws://localhost:8080/ws/events")
	v.SetDefault("events.ping_interval", 30*time.Second)
	v.SetDefault("events.reconnect.initial_delay", 1*time.Second)
	v.SetDefault("events.reconnect.max_delay", 30*time.Second)
	v.SetDefault("events.reconnect.max_attempts", 10)
	v.SetDefault("events.reconnect.multiplier", 1.5)

	v.SetDefault("sampler.enabled", true)
	v.SetDefault("sampler.queue_schedule", "@every 30s")
	v.SetDefault("sampler.system_schedule", "@every 15s")

	v.SetDefault("metrics.enabled", true)
}

// Load reads configuration from the given file path (optional) plus
// environment variables, and installs it as the active config.
func Load(path string) error {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MAILBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	loaded, err := unmarshal(v)
	if err != nil {
		return err
	}

	mu.Lock()
	cfg = loaded
	mu.Unlock()

	if path != "" {
		v.OnConfigChange(func(e fsnotify.Event) {
			reloaded, err := unmarshal(v)
			if err != nil {
				log.Printf("config: reload failed, keeping previous config: %v", err)
				return
			}
			mu.Lock()
			cfg = reloaded
			observers := append(([]func(*Config))(nil), watchers...)
			mu.Unlock()
			log.Printf("config: reloaded from %s", e.Name)
			for _, fn := range observers {
				fn(reloaded)
			}
		})
		v.WatchConfig()
	}
	return nil
}

// Watch registers fn to be called with the new configuration after every
// successful hot reload. Registrations survive subsequent Load calls.
func Watch(fn func(*Config)) {
	mu.Lock()
	defer mu.Unlock()
	watchers = append(watchers, fn)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Events.Reconnect.Multiplier <= 1 {
		return fmt.Errorf("reconnect multiplier must be greater than 1, got %v", c.Events.Reconnect.Multiplier)
	}
	return nil
}

// Get returns the active configuration, or nil before a successful Load.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}
