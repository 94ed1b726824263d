package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, AGENTSWARM_CONFIG env, ./agentswarm.yaml)
//  3. AGENTSWARM_* environment variables
//  4. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if filePath := discoverConfigFile(configPath); filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

// discoverConfigFile returns the explicit path, AGENTSWARM_CONFIG or
// ./agentswarm.yaml if it exists. Returns empty string if none is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv(EnvPrefix + "CONFIG"); envPath != "" {
		return envPath
	}
	if _, err := os.Stat("agentswarm.yaml"); err == nil {
		return "agentswarm.yaml"
	}
	return ""
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnv overlays AGENTSWARM_<SECTION>_* variables, for example
// AGENTSWARM_ENGINE_MAX_CONCURRENCY. Unset variables leave the current values
// untouched.
func applyEnv(cfg *Config) error {
	sections := []struct {
		prefix string
		target any
	}{
		{"ENGINE_", &cfg.Engine},
		{"RETRY_", &cfg.Retry},
		{"MODEL_", &cfg.Model},
		{"MEMORY_", &cfg.Memory},
		{"LOG_", &cfg.Logging},
		{"METRICS_", &cfg.Metrics},
	}
	for _, s := range sections {
		if err := env.ParseWithOptions(s.target, env.Options{Prefix: EnvPrefix + s.prefix}); err != nil {
			return fmt.Errorf("parse env: %w", err)
		}
	}
	return nil
}
