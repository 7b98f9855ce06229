package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/packdb/packdb/core/config"
	coredatabase "github.com/packdb/packdb/core/database"
)

// LimitsConfig bounds the per-owner entry count. Zero or negative disables
// the quota.
type LimitsConfig struct {
	MaxEntries int `yaml:"max_entries" envconfig:"ENTRY_LIMIT"`
}

// PagesConfig tunes page sizes for browsing and inline search.
// Zero values pick the built-in defaults.
type PagesConfig struct {
	View   int `yaml:"view" envconfig:"VIEW_PAGE_SIZE"`
	Inline int `yaml:"inline" envconfig:"INLINE_PAGE_SIZE"`
}

// Config aggregates the shared core settings with packdb-specific ones.
type Config struct {
	Core     coreconfig.Config   `yaml:",inline"`
	Database coredatabase.Config `yaml:"database"`
	Limits   LimitsConfig        `yaml:"limits"`
	Pages    PagesConfig         `yaml:"pages"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}
	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Core
}
