// Package config loads searchflow settings from defaults, an optional config
// file and SEARCHFLOW_ environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/elastiflow/searchflow/busy"
)

// Gateway kinds.
const (
	GatewayMemory = "memory"
	GatewaySQLite = "sqlite"
)

// Config holds application configuration.
type Config struct {
	Search  SearchConfig
	Busy    BusyConfig
	Gateway GatewayConfig
	Server  ServerConfig
	Log     LogConfig
}

// SearchConfig tunes the search pipeline.
type SearchConfig struct {
	Debounce  time.Duration
	MinLength int `mapstructure:"min_length"`
}

// BusyConfig selects how source busy flags combine.
type BusyConfig struct {
	Rule string
}

// GatewayConfig selects and tunes the data gateway.
type GatewayConfig struct {
	Kind          string
	Fixtures      string
	DBPath        string `mapstructure:"db_path"`
	Latency       time.Duration
	FuzzyDistance int `mapstructure:"fuzzy_distance"`
	Watch         bool
}

// ServerConfig holds websocket server settings.
type ServerConfig struct {
	Addr string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
}

// Load reads configuration from file and env. Env var overrides use prefix SEARCHFLOW_.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("search.debounce", 300*time.Millisecond)
	v.SetDefault("search.min_length", 3)
	v.SetDefault("busy.rule", "all")
	v.SetDefault("gateway.kind", GatewayMemory)
	v.SetDefault("gateway.fixtures", "")
	v.SetDefault("gateway.db_path", filepath.Join(os.Getenv("HOME"), ".local", "share", "searchflow", "searchflow.db"))
	v.SetDefault("gateway.latency", 0)
	v.SetDefault("gateway.fuzzy_distance", 1)
	v.SetDefault("gateway.watch", false)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.level", "info")

	v.SetConfigType("yaml")

	cfgPath := os.Getenv("SEARCHFLOW_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "searchflow"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("SEARCHFLOW")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	if c.Search.Debounce <= 0 {
		return fmt.Errorf("search.debounce must be positive, got %s", c.Search.Debounce)
	}
	if c.Search.MinLength < 1 {
		return fmt.Errorf("search.min_length must be at least 1, got %d", c.Search.MinLength)
	}
	if _, err := busy.ParseRule(c.Busy.Rule); err != nil {
		return fmt.Errorf("busy.rule: %w", err)
	}
	switch c.Gateway.Kind {
	case GatewayMemory:
	case GatewaySQLite:
		if c.Gateway.DBPath == "" {
			return errors.New("gateway.db_path is required for the sqlite gateway")
		}
	default:
		return fmt.Errorf("gateway.kind must be %q or %q, got %q", GatewayMemory, GatewaySQLite, c.Gateway.Kind)
	}
	if c.Gateway.Latency < 0 {
		return fmt.Errorf("gateway.latency must not be negative, got %s", c.Gateway.Latency)
	}
	if c.Gateway.FuzzyDistance < 0 {
		return fmt.Errorf("gateway.fuzzy_distance must not be negative, got %d", c.Gateway.FuzzyDistance)
	}
	if c.Gateway.Watch && c.Gateway.Kind != GatewayMemory {
		return errors.New("gateway.watch only applies to the memory gateway")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// BusyRule returns the parsed busy rule.
func (c Config) BusyRule() busy.Rule {
	rule, err := busy.ParseRule(c.Busy.Rule)
	if err != nil {
		return busy.All
	}
	return rule
}

// SlogLevel parses the configured level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
