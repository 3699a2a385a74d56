// Package config loads and validates the fixture configuration.
//
// Configuration comes from three layers applied in order: built-in
// defaults, an optional YAML file, and FAULTDNS_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         5053,
			EnableTCP:    true,
			QueryTimeout: "2s",
		},
		Scenarios: ScenariosConfig{Initial: "clean"},
		Harness: HarnessConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8080,
		},
		Results: ResultsConfig{Path: "faultdns.db"},
		Logging: LoggingConfig{Level: "INFO", StructuredFormat: "json"},
	}
}

// ResolveConfigPath picks the config file path: the flag wins, then the
// FAULTDNS_CONFIG environment variable, then empty for pure defaults.
func ResolveConfigPath(flag string) string {
	if p := strings.TrimSpace(flag); p != "" {
		return p
	}
	return strings.TrimSpace(os.Getenv("FAULTDNS_CONFIG"))
}

// Load reads the configuration from the given path, applies environment
// overrides, and validates the result. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies FAULTDNS_* environment variables on top of the
// file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FAULTDNS_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("FAULTDNS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("FAULTDNS_ENABLE_TCP"); v != "" {
		cfg.Server.EnableTCP = envBool(v, cfg.Server.EnableTCP)
	}
	if v := os.Getenv("FAULTDNS_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MaxConcurrency = n
		}
	}
	if v := os.Getenv("FAULTDNS_QUERY_TIMEOUT"); v != "" {
		cfg.Server.QueryTimeout = v
	}
	if v := os.Getenv("FAULTDNS_SCENARIO"); v != "" {
		cfg.Scenarios.Initial = v
	}
	if v := os.Getenv("FAULTDNS_SCENARIOS_DIR"); v != "" {
		cfg.Scenarios.Dir = v
	}
	if v := os.Getenv("FAULTDNS_HARNESS_ENABLED"); v != "" {
		cfg.Harness.Enabled = envBool(v, cfg.Harness.Enabled)
	}
	if v := os.Getenv("FAULTDNS_HARNESS_HOST"); v != "" {
		cfg.Harness.Host = v
	}
	if v := os.Getenv("FAULTDNS_HARNESS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Harness.Port = n
		}
	}
	if v := os.Getenv("FAULTDNS_API_KEY"); v != "" {
		cfg.Harness.APIKey = v
	}
	if v := os.Getenv("FAULTDNS_RESULTS_PATH"); v != "" {
		cfg.Results.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate validates and normalizes the configuration.
func (cfg *Config) Validate() error {
	// Validate port
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New("server.port must be 1..65535")
	}

	if cfg.Server.QueryTimeout == "" {
		cfg.Server.QueryTimeout = "2s"
	}
	if d, err := time.ParseDuration(cfg.Server.QueryTimeout); err != nil || d <= 0 {
		return fmt.Errorf("server.query_timeout %q is not a positive duration", cfg.Server.QueryTimeout)
	}

	if cfg.Scenarios.Initial == "" {
		cfg.Scenarios.Initial = "clean"
	}

	// Normalize management API
	if cfg.Harness.Host == "" {
		cfg.Harness.Host = "127.0.0.1"
	}
	if cfg.Harness.Enabled {
		if cfg.Harness.Port <= 0 || cfg.Harness.Port > 65535 {
			return errors.New("harness.port must be 1..65535")
		}
	}

	if cfg.Results.Path == "" {
		cfg.Results.Path = "faultdns.db"
	}

	// Normalize logging
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.StructuredFormat == "" {
		cfg.Logging.StructuredFormat = "json"
	}
	if cfg.Logging.ExtraFields == nil {
		cfg.Logging.ExtraFields = map[string]string{}
	}

	return nil
}

// envBool parses a boolean-ish environment value, falling back to def.
func envBool(raw string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
