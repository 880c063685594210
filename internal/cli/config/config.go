package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const ConfigFileName = "storectl.yaml"

// ErrConfigNotFound is returned when no project file exists up the tree
var ErrConfigNotFound = errors.New(ConfigFileName + " not found")

// StoreAlias gives a store a short local name
type StoreAlias struct {
	ID    string `yaml:"id"`
	Alias string `yaml:"alias"`
}

// Config represents the per-project storectl.yaml file
type Config struct {
	APIURL string       `yaml:"api_url,omitempty"`
	Stores []StoreAlias `yaml:"stores,omitempty"`
}

// DefaultConfig returns the configuration written by "storectl init"
func DefaultConfig(apiURL string) *Config {
	return &Config{
		APIURL: apiURL,
		Stores: []StoreAlias{},
	}
}

// FindConfigFile searches for storectl.yaml in current directory and parent directories
func FindConfigFile() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	dir := currentDir
	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%w in %s or any parent directory", ErrConfigNotFound, currentDir)
}

// Load reads the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// LoadFromCurrentDir loads config from current directory or parent
// directories. The project file is optional: without one an empty config
// is returned.
func LoadFromCurrentDir() (*Config, error) {
	configPath, err := FindConfigFile()
	if errors.Is(err, ErrConfigNotFound) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, err
	}

	return Load(configPath)
}

// Save writes the configuration to a file
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ResolveStoreID maps an alias to its store ID. Anything that is not a
// known alias is returned unchanged.
func (c *Config) ResolveStoreID(aliasOrID string) string {
	for _, s := range c.Stores {
		if s.Alias == aliasOrID {
			return s.ID
		}
	}
	return aliasOrID
}

// AliasFor returns the alias of storeID, or "" if it has none
func (c *Config) AliasFor(storeID string) string {
	for _, s := range c.Stores {
		if s.ID == storeID {
			return s.Alias
		}
	}
	return ""
}

// SetAlias adds or replaces the alias for storeID
func (c *Config) SetAlias(storeID, alias string) {
	for i := range c.Stores {
		if c.Stores[i].ID == storeID {
			c.Stores[i].Alias = alias
			return
		}
	}
	c.Stores = append(c.Stores, StoreAlias{ID: storeID, Alias: alias})
}
