// Package config handles voxctl configuration using Viper.
//
// Configuration sources (in priority order):
//  1. Environment variables (VOXCTL_*)
//  2. Config file (<user config dir>/voxctl/config.yaml)
//  3. Built-in defaults
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/voxdash/voxctl/internal/paths"
)

const (
	// DefaultAPIURL is the default assistant backend origin.
	DefaultAPIURL = "http://localhost:5000"
	// DefaultAPITimeout bounds each backend HTTP request.
	DefaultAPITimeout = 10 * time.Second
	// DefaultEventsPath is appended to the API origin when events.url is unset.
	DefaultEventsPath = "/ws"
	// DefaultReconnectDelay is the pause before resubscribing to a dropped push channel.
	DefaultReconnectDelay = 2 * time.Second
	// DefaultPollInterval is the system-info refresh period.
	DefaultPollInterval = 5 * time.Second
	// DefaultHistoryRetention is the default history prune window.
	DefaultHistoryRetention = 30 * 24 * time.Hour
)

// Config holds the voxctl configuration.
type Config struct {
	v *viper.Viper
}

// Load reads configuration from all sources.
func Load() *Config {
	v := viper.New()

	v.SetDefault("api.url", DefaultAPIURL)
	v.SetDefault("api.timeout", DefaultAPITimeout)
	v.SetDefault("events.url", "")
	v.SetDefault("events.reconnect_delay", DefaultReconnectDelay)
	v.SetDefault("poll.interval", DefaultPollInterval)
	v.SetDefault("log.max_messages", 0)
	v.SetDefault("session.sync", true)
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.dir", "")
	v.SetDefault("history.retention", DefaultHistoryRetention)

	if configDir, err := paths.ConfigRoot(); err == nil {
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("VOXCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing file is fine; anything else is worth a warning.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: error reading config file: %v\n", err)
		}
	}

	return &Config{v: v}
}

// Get returns a configuration value.
func (c *Config) Get(key string) interface{} {
	return c.v.Get(key)
}

// GetString returns a configuration value as string.
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt returns a configuration value as int.
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// Set sets a configuration value and persists it.
func (c *Config) Set(key string, value interface{}) error {
	c.v.Set(key, value)

	configDir, err := paths.ConfigRoot()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return err
	}

	return c.v.WriteConfigAs(filepath.Join(configDir, "config.yaml"))
}

// File returns the config file in use, or "" when running on defaults.
func (c *Config) File() string {
	return c.v.ConfigFileUsed()
}

// All returns all configuration as a map.
func (c *Config) All() map[string]interface{} {
	return c.v.AllSettings()
}

// APIURL returns the backend origin without a trailing slash.
func (c *Config) APIURL() string {
	return strings.TrimRight(c.GetString("api.url"), "/")
}

// APITimeout returns the per-request HTTP timeout.
func (c *Config) APITimeout() time.Duration {
	if d := c.v.GetDuration("api.timeout"); d > 0 {
		return d
	}

	return DefaultAPITimeout
}

// EventsURL returns the push channel URL, derived from api.url when unset.
func (c *Config) EventsURL() string {
	if explicit := strings.TrimSpace(c.GetString("events.url")); explicit != "" {
		return explicit
	}

	return DeriveEventsURL(c.APIURL())
}

// ReconnectDelay returns the push channel resubscribe delay. Zero disables reconnects.
func (c *Config) ReconnectDelay() time.Duration {
	d := c.v.GetDuration("events.reconnect_delay")
	if d < 0 {
		return 0
	}

	return d
}

// PollInterval returns the system-info refresh period.
func (c *Config) PollInterval() time.Duration {
	if d := c.v.GetDuration("poll.interval"); d > 0 {
		return d
	}

	return DefaultPollInterval
}

// MaxMessages returns the message log capacity. Zero means unbounded.
func (c *Config) MaxMessages() int {
	if n := c.GetInt("log.max_messages"); n > 0 {
		return n
	}

	return 0
}

// SessionSync reports whether the run state is seeded from the backend on mount.
func (c *Config) SessionSync() bool {
	return c.v.GetBool("session.sync")
}

// HistoryEnabled reports whether message history is recorded.
func (c *Config) HistoryEnabled() bool {
	return c.v.GetBool("history.enabled")
}

// HistoryDir returns the history directory, falling back to the state directory.
func (c *Config) HistoryDir() string {
	if dir := strings.TrimSpace(c.GetString("history.dir")); dir != "" {
		return dir
	}

	dir, err := paths.HistoryDir()
	if err != nil {
		return ""
	}

	return dir
}

// HistoryRetention returns the default prune window.
func (c *Config) HistoryRetention() time.Duration {
	if d := c.v.GetDuration("history.retention"); d > 0 {
		return d
	}

	return DefaultHistoryRetention
}

// DeriveEventsURL maps an http(s) origin onto the matching ws(s) push endpoint.
func DeriveEventsURL(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return "ws://localhost:5000" + DefaultEventsPath
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	u.Path = strings.TrimRight(u.Path, "/") + DefaultEventsPath
	u.RawQuery = ""
	u.Fragment = ""

	return u.String()
}
