// Package config provides configuration loading from YAML files.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Player  PlayerConfig  `yaml:"player"`
	Catalog CatalogConfig `yaml:"catalog"`
	Account AccountConfig `yaml:"account"`
}

// PlayerConfig represents playback engine configuration.
type PlayerConfig struct {
	StateDir       string  `yaml:"state_dir" default:".echomood"`
	Volume         float64 `yaml:"volume" default:"0.8" validate:"gte=0,lte=1"`
	ReloadDelaySec int     `yaml:"reload_delay_sec" default:"10" validate:"gte=0,lte=300"`
}

// CatalogConfig represents the streaming catalog API configuration.
type CatalogConfig struct {
	Host      string `yaml:"host" default:"https://api.audius.co" validate:"required,url"`
	AppName   string `yaml:"app_name" default:"EchoMood" validate:"required"`
	TimeRange string `yaml:"time_range" default:"week" validate:"oneof=week month year allTime"`
	Limit     int    `yaml:"limit" default:"20" validate:"gt=0,lte=100"`
}

// AccountConfig represents the user-account service configuration.
type AccountConfig struct {
	BaseURL string `yaml:"base_url" default:"http://localhost:8000" validate:"required,url"`
}

// Load loads configuration from a YAML file.
// A missing file is not an error; defaults apply. Environment variables
// take precedence over file values.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	case os.IsNotExist(err):
		// Run on defaults
	default:
		return nil, errors.Wrap(err, "failed to read config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("CATALOG_HOST"); v != "" {
		c.Catalog.Host = v
	}
	if v := os.Getenv("CATALOG_APP_NAME"); v != "" {
		c.Catalog.AppName = v
	}
	if v := os.Getenv("ACCOUNT_BASE_URL"); v != "" {
		c.Account.BaseURL = v
	}
	if v := os.Getenv("PLAYER_STATE_DIR"); v != "" {
		c.Player.StateDir = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}
