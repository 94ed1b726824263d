package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Engine.JoinCapacity <= 0 {
		errs = append(errs, fmt.Errorf("engine.join_capacity must be > 0, got %d", c.Engine.JoinCapacity))
	}
	if c.Engine.BlockingPoolSize < 0 {
		errs = append(errs, fmt.Errorf("engine.blocking_pool_size must be >= 0, got %d", c.Engine.BlockingPoolSize))
	}
	if c.Engine.JoinTTL < 0 || c.Engine.DrainTimeout < 0 {
		errs = append(errs, fmt.Errorf("engine durations must not be negative"))
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be > 0, got %d", c.Retry.MaxAttempts))
	}
	if c.Retry.SimilarityThreshold < 0 || c.Retry.SimilarityThreshold > 100 {
		errs = append(errs, fmt.Errorf("retry.similarity_threshold must be within [0,100], got %v", c.Retry.SimilarityThreshold))
	}
	if c.Retry.CallsPerWindow > 0 && c.Retry.Window <= 0 {
		errs = append(errs, fmt.Errorf("retry.window is required when retry.calls_per_window is set"))
	}

	switch c.Model.Provider {
	case "openai", "anthropic", "mock":
	default:
		errs = append(errs, fmt.Errorf("model.provider must be \"openai\", \"anthropic\" or \"mock\", got %q", c.Model.Provider))
	}
	if c.Model.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("model.max_tokens must be > 0, got %d", c.Model.MaxTokens))
	}

	switch c.Memory.Type {
	case "memory":
	case "sqlite":
		if strings.TrimSpace(c.Memory.Path) == "" {
			errs = append(errs, fmt.Errorf("memory.path is required when memory.type is \"sqlite\""))
		}
	default:
		errs = append(errs, fmt.Errorf("memory.type must be \"memory\" or \"sqlite\", got %q", c.Memory.Type))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"json\" or \"text\", got %q", c.Logging.Format))
	}

	seen := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		switch {
		case strings.TrimSpace(a.Name) == "":
			errs = append(errs, fmt.Errorf("agents[%d].name is required", i))
		case seen[a.Name]:
			errs = append(errs, fmt.Errorf("agents[%d].name %q is duplicated", i, a.Name))
		}
		seen[a.Name] = true
		if a.DicerollSides < 0 {
			errs = append(errs, fmt.Errorf("agents[%d].diceroll_sides must be >= 0", i))
		}
	}

	return errors.Join(errs...)
}
