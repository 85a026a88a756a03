// Package config loads focusd settings from defaults, an optional
// .focusd.yaml, FOCUSD_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/teslashibe/go-focus/pkg/focus"
	"github.com/teslashibe/go-focus/pkg/session"
)

// Store backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Defaults.
const (
	DefaultAddr      = ":8080"
	DefaultLogLevel  = "info"
	DefaultBackend   = BackendSQLite
	DefaultStorePath = "focusd.db"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Config is the resolved focusd configuration.
type Config struct {
	Addr           string        `mapstructure:"addr"`
	LogLevel       string        `mapstructure:"log-level"`
	Store          string        `mapstructure:"store"`
	StorePath      string        `mapstructure:"store-path"`
	ReportInterval time.Duration `mapstructure:"report-interval"`
	Preset         string        `mapstructure:"preset"`
	Debug          bool          `mapstructure:"debug"`
}

// New returns a viper instance with focusd defaults and env binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName(".focusd")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")

	v.SetEnvPrefix("FOCUSD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("log-level", DefaultLogLevel)
	v.SetDefault("store", DefaultBackend)
	v.SetDefault("store-path", DefaultStorePath)
	v.SetDefault("report-interval", session.DefaultReportInterval)
	v.SetDefault("preset", focus.PresetDefault)
	v.SetDefault("debug", false)
	return v
}

// Load reads the config file if present and returns the validated config.
// A "config" key names an explicit file, which must exist.
func Load(v *viper.Viper) (*Config, error) {
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the store backend, interval and preset.
func (c *Config) Validate() error {
	switch c.Store {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("%w: store %q (want %s or %s)", ErrInvalid, c.Store, BackendJSON, BackendSQLite)
	}
	if c.StorePath == "" {
		return fmt.Errorf("%w: store-path is required", ErrInvalid)
	}
	if c.ReportInterval <= 0 {
		return fmt.Errorf("%w: report-interval must be positive, got %s", ErrInvalid, c.ReportInterval)
	}
	if _, err := focus.ConfigByName(c.Preset); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// OpenStore opens the configured session store.
func (c *Config) OpenStore() (session.Store, error) {
	switch c.Store {
	case BackendJSON:
		store, err := session.NewJSONStore(c.StorePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendSQLite:
		store, err := session.NewSQLStore(c.StorePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: store %q", ErrInvalid, c.Store)
	}
}

// ManagerOptions returns the session manager options for this config.
func (c *Config) ManagerOptions() session.Options {
	return session.Options{
		Preset:         c.Preset,
		ReportInterval: c.ReportInterval,
	}
}
