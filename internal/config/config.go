// Package config loads settings from defaults, an optional config file and
// TODO_* environment variables, in increasing order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TODO_DATABASE_PATH.
const EnvPrefix = "TODO"

// DefaultFile is the config file searched for when none is given.
const DefaultFile = "todo.toml"

// Config is the full application configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Log       LogConfig       `mapstructure:"log"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Reminder  ReminderConfig  `mapstructure:"reminder"`
	Inbox     InboxConfig     `mapstructure:"inbox"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// LogConfig controls the optional rotating log file. An empty File logs to
// stderr only.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type ReminderConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	UpcomingSpec string        `mapstructure:"upcoming_spec"`
	OverdueSpec  string        `mapstructure:"overdue_spec"`
	Window       time.Duration `mapstructure:"window"`
}

// InboxConfig enables the import inbox when Dir is set.
type InboxConfig struct {
	Dir      string        `mapstructure:"dir"`
	Debounce time.Duration `mapstructure:"debounce"`
}

var defaults = map[string]interface{}{
	"database.path":          "todo.db",
	"server.addr":            ":3000",
	"server.read_timeout":    15 * time.Second,
	"server.write_timeout":   15 * time.Second,
	"cache.enabled":          true,
	"cache.ttl":              5 * time.Minute,
	"log.file":               "",
	"log.max_size_mb":        10,
	"log.max_backups":        3,
	"log.max_age_days":       28,
	"log.compress":           false,
	"dashboard.enabled":      false,
	"dashboard.port":         8080,
	"reminder.enabled":       true,
	"reminder.upcoming_spec": "0 9 * * *",
	"reminder.overdue_spec":  "0 * * * *",
	"reminder.window":        24 * time.Hour,
	"inbox.dir":              "",
	"inbox.debounce":         500 * time.Millisecond,
}

// Loader wraps a viper instance with the application defaults applied.
type Loader struct {
	v *viper.Viper
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// NewLoader creates a loader. If path is empty, DefaultFile is looked up in
// the working directory and a missing file is not an error.
func NewLoader(path string) *Loader {
	v := newViper()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultFile, filepath.Ext(DefaultFile)))
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}
	return &Loader{v: v}
}

// BindFlag lets a command-line flag override key when the flag is set.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("no flag for %s", key)
	}
	if err := l.v.BindPFlag(key, flag); err != nil {
		return fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
	}
	return nil
}

// Load reads the config file if there is one and returns the merged
// configuration.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg, err := decode(l.v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// File returns the config file in use, or "" when running on defaults.
func (l *Loader) File() string {
	return l.v.ConfigFileUsed()
}

// Load is shorthand for NewLoader(path).Load().
func Load(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Default returns the configuration with no file or environment applied.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate rejects settings the rest of the program cannot start with.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive (got %v)", c.Cache.TTL)
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port out of range: %d", c.Dashboard.Port)
	}
	if c.Reminder.Enabled && c.Reminder.Window <= 0 {
		return fmt.Errorf("reminder.window must be positive (got %v)", c.Reminder.Window)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation settings cannot be negative")
	}
	return nil
}

// Encode renders c as TOML. Durations are written as strings ("5m0s") so
// the file reads back through Load.
func (c *Config) Encode() ([]byte, error) {
	doc := map[string]map[string]interface{}{
		"database": {"path": c.Database.Path},
		"server": {
			"addr":          c.Server.Addr,
			"read_timeout":  c.Server.ReadTimeout.String(),
			"write_timeout": c.Server.WriteTimeout.String(),
		},
		"cache": {"enabled": c.Cache.Enabled, "ttl": c.Cache.TTL.String()},
		"log": {
			"file":         c.Log.File,
			"max_size_mb":  c.Log.MaxSizeMB,
			"max_backups":  c.Log.MaxBackups,
			"max_age_days": c.Log.MaxAgeDays,
			"compress":     c.Log.Compress,
		},
		"dashboard": {"enabled": c.Dashboard.Enabled, "port": c.Dashboard.Port},
		"reminder": {
			"enabled":       c.Reminder.Enabled,
			"upcoming_spec": c.Reminder.UpcomingSpec,
			"overdue_spec":  c.Reminder.OverdueSpec,
			"window":        c.Reminder.Window.String(),
		},
		"inbox": {"dir": c.Inbox.Dir, "debounce": c.Inbox.Debounce.String()},
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes c to path. It refuses to overwrite an existing file
// unless force is set.
func (c *Config) WriteFile(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	data, err := c.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
