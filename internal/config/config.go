package config

import (
	"coveriq/internal/figma"
	"coveriq/internal/filter"
	"coveriq/internal/stage"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where the CLI looks for configuration.
const DefaultConfigPath = ".coveriq/config.yaml"

// Config holds all coveriq configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Component filter
	Filter FilterConfig `yaml:"filter"`

	// Stage store
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// FilterConfig configures the design-tree filter.
type FilterConfig struct {
	Policy      string `yaml:"policy"`       // strict, structural
	RootPath    string `yaml:"root_path"`    // dotted lookup path, e.g. figma_data.document
	IncludeSize bool   `yaml:"include_size"` // emit size next to position
	MaxDepth    int    `yaml:"max_depth"`    // 0 = filter default, negative = unbounded
}

// StoreConfig configures where stage outputs are kept.
type StoreConfig struct {
	Driver       string `yaml:"driver"` // memory, sqlite, sqlite3
	DatabasePath string `yaml:"database_path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "coveriq",
		Version: "0.3.0",

		Filter: FilterConfig{
			Policy:      "strict",
			RootPath:    "document",
			IncludeSize: true,
			MaxDepth:    filter.DefaultMaxDepth,
		},

		Store: StoreConfig{
			Driver:       stage.DriverSQLite,
			DatabasePath: ".coveriq/stages.db",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Defaults still honour the environment
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("COVERIQ_POLICY"); v != "" {
		c.Filter.Policy = v
	}
	if v := os.Getenv("COVERIQ_ROOT_PATH"); v != "" {
		c.Filter.RootPath = v
	}
	if v := os.Getenv("COVERIQ_MAX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Filter.MaxDepth = n
		}
	}

	if v := os.Getenv("COVERIQ_STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("COVERIQ_DB"); v != "" {
		c.Store.DatabasePath = v
	}

	if v := os.Getenv("COVERIQ_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// ValidDrivers lists the supported store drivers.
var ValidDrivers = []string{"memory", stage.DriverSQLite, stage.DriverSQLite3}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := filter.ParsePolicy(c.Filter.Policy); err != nil {
		return err
	}

	validDriver := false
	for _, d := range ValidDrivers {
		if c.Store.Driver == d {
			validDriver = true
			break
		}
	}
	if !validDriver {
		return fmt.Errorf("invalid store driver: %s (valid: %v)", c.Store.Driver, ValidDrivers)
	}
	if c.Store.Driver != "memory" && c.Store.DatabasePath == "" {
		return fmt.Errorf("store.database_path required for driver %s", c.Store.Driver)
	}

	return c.Logging.Validate()
}

// FilterOptions converts the filter section into filter.Options.
func (c *Config) FilterOptions() (filter.Options, error) {
	policy, err := filter.ParsePolicy(c.Filter.Policy)
	if err != nil {
		return filter.Options{}, err
	}
	root := figma.ParsePath(c.Filter.RootPath)
	if root == nil {
		root = figma.DefaultRootPath
	}
	return filter.Options{
		RootPath: root,
		Policy:   policy,
		OmitSize: !c.Filter.IncludeSize,
		MaxDepth: c.Filter.MaxDepth,
	}, nil
}
