package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is read when NEWSWIRE_CONFIG is not set.
const DefaultConfigPath = "newswire.yaml"

// LoadConfigFile reads a YAML config file over the defaults. A missing file
// is not an error: the defaults are returned as-is. A file that exists but
// cannot be parsed is.
func LoadConfigFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Load reads the config file named by NEWSWIRE_CONFIG (or
// DefaultConfigPath), applies the PORT override, and validates the result.
func Load() (*Config, error) {
	path := getEnv("NEWSWIRE_CONFIG", DefaultConfigPath)

	cfg, err := LoadConfigFile(path)
	if err != nil {
		return nil, err
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Server.Addr = ":" + strings.TrimPrefix(port, ":")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
