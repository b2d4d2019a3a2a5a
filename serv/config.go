package serv

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the service configuration surface
type Config struct {
	// LogLevel is one of debug, info, warn, error
	LogLevel string `mapstructure:"log_level"`

	// LogFormat is "json" for structured output, anything else for console
	LogFormat string `mapstructure:"log_format"`

	// Caching holds the cache tunables
	Caching CachingConfig `mapstructure:"caching"`

	vi *viper.Viper
}

// ReadInConfig reads the configuration file at path (yaml) and applies
// defaults and validation
func ReadInConfig(path string) (*Config, error) {
	vi := newViper(path)

	if err := vi.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	c := &Config{vi: vi}
	if err := vi.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func newViper(path string) *viper.Viper {
	vi := viper.New()

	vi.SetEnvPrefix("FC")
	vi.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vi.AutomaticEnv()

	vi.SetConfigFile(path)
	if ext := filepath.Ext(path); ext == "" {
		vi.SetConfigType("yaml")
	}

	vi.SetDefault("log_level", "info")
	vi.SetDefault("log_format", "console")
	vi.SetDefault("caching.tagging_enabled", false)
	vi.SetDefault("caching.ttl", 300)
	vi.SetDefault("caching.fresh_ttl", 0)
	vi.SetDefault("caching.max_entries", defaultMemoryStoreSize)

	return vi
}

func (c *Config) validate() error {
	if c.Caching.TTL < 0 {
		return fmt.Errorf("caching.ttl must not be negative")
	}
	if c.Caching.FreshTTL < 0 {
		return fmt.Errorf("caching.fresh_ttl must not be negative")
	}
	if c.Caching.FreshTTL > c.Caching.TTL {
		return fmt.Errorf("caching.fresh_ttl (%d) must not exceed caching.ttl (%d)",
			c.Caching.FreshTTL, c.Caching.TTL)
	}
	if c.Caching.MaxEntries < 0 {
		return fmt.Errorf("caching.max_entries must not be negative")
	}

	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// Watch re-reads the config file on change and publishes the new cache
// tunables through the returned holder. Invalid edits are logged and the
// previous config stays in effect.
func (c *Config) Watch(log *zap.Logger) *ConfigHolder {
	holder := &ConfigHolder{}
	holder.store(c)

	c.vi.OnConfigChange(func(e fsnotify.Event) {
		nc := &Config{vi: c.vi}
		if err := c.vi.Unmarshal(nc); err != nil {
			log.Warn("config reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		if err := nc.validate(); err != nil {
			log.Warn("config reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.store(nc)
		log.Info("config reloaded", zap.String("file", e.Name))
	})
	c.vi.WatchConfig()

	return holder
}

// ConfigHolder is an atomically swappable view of the live configuration
type ConfigHolder struct {
	v atomic.Value
}

func (h *ConfigHolder) store(c *Config) {
	h.v.Store(c)
}

// Load returns the current configuration
func (h *ConfigHolder) Load() *Config {
	return h.v.Load().(*Config)
}
