// Package config provides configuration management for the fund engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	apperrors "fundvest/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Engine   EngineConfig   `mapstructure:"engine"`
	SIP      SIPConfig      `mapstructure:"sip"`
	NAV      NAVConfig      `mapstructure:"nav"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// EngineConfig holds order-processing configuration.
type EngineConfig struct {
	SettlementDelay time.Duration `mapstructure:"settlement_delay"`
	StaleAfter      time.Duration `mapstructure:"stale_after"`
}

// SIPConfig holds recurring-investment scheduler configuration.
type SIPConfig struct {
	Schedule string `mapstructure:"schedule"` // cron expression
}

// NAVConfig holds the static NAV table and the fallback price for funds not
// present in the table.
type NAVConfig struct {
	Funds    map[string]float64 `mapstructure:"funds"`
	Fallback float64            `mapstructure:"fallback"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/fundvest"
	}
	return filepath.Join(home, ".config", "fundvest")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing config
// file yields the defaults.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("database.path", filepath.Join(DefaultConfigDir(), "fundvest.db"))
	v.SetDefault("engine.settlement_delay", "2s")
	v.SetDefault("engine.stale_after", "10m")
	v.SetDefault("sip.schedule", "0 9 * * *")
	v.SetDefault("nav.fallback", 50.00)
	v.SetDefault("nav.funds", map[string]float64{
		"SBI Bluechip Fund":   45.67,
		"HDFC Mid Cap Fund":   58.32,
		"Axis Small Cap Fund": 42.15,
	})
	v.SetDefault("log.level", "info")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FUNDVEST_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("FUNDVEST_JWT_SECRET"); v != "" {
		cfg.Server.JWTSecret = v
	}
	if v := os.Getenv("FUNDVEST_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr must not be empty", apperrors.ErrConfigInvalid)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path must not be empty", apperrors.ErrConfigInvalid)
	}
	if c.Engine.SettlementDelay < 0 {
		return fmt.Errorf("%w: engine.settlement_delay must be non-negative", apperrors.ErrConfigInvalid)
	}
	if c.Engine.StaleAfter <= 0 {
		return fmt.Errorf("%w: engine.stale_after must be positive", apperrors.ErrConfigInvalid)
	}
	if c.SIP.Schedule == "" {
		return fmt.Errorf("%w: sip.schedule must not be empty", apperrors.ErrConfigInvalid)
	}
	if c.NAV.Fallback <= 0 {
		return fmt.Errorf("%w: nav.fallback must be positive", apperrors.ErrConfigInvalid)
	}
	for name, price := range c.NAV.Funds {
		if price <= 0 {
			return fmt.Errorf("%w: nav.funds[%q] must be positive", apperrors.ErrConfigInvalid, name)
		}
	}
	return nil
}
