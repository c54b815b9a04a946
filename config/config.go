// Package config holds the application configuration of the trie
// database tooling.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eth-state/triedb/pkg/storage/dbconfig"
)

// BasicService is used for simple services like Prometheus.
type BasicService struct {
	Enabled bool   `yaml:"Enabled"`
	Address string `yaml:"Address"`
}

// Config describes the trie database and its auxiliary services.
type Config struct {
	DB         dbconfig.DBConfiguration `yaml:"DB"`
	LogLevel   string                   `yaml:"LogLevel"`
	Prometheus BasicService             `yaml:"Prometheus"`
}

// Load reads the YAML configuration from the given path.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("unable to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	if cfg.DB.Type == "" {
		cfg.DB.Type = dbconfig.LevelDB
	}
	return cfg, nil
}
