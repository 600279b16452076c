package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, errors.Wrapf(err, "loading config from %s", path)
		}
	}
	return cfg, nil
}

// LoadWithFlags loads the file named by -config and applies CLI overrides on top.
func LoadWithFlags() (*Config, error) {
	cfg, err := Load(ConfigPath())
	if err != nil {
		return nil, err
	}
	applyFlags(cfg)
	return cfg, nil
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Save writes the configuration as YAML.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}
	return os.WriteFile(path, data, 0o644)
}
