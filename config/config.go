// Package config loads agentswarm settings from defaults, an optional YAML
// file and AGENTSWARM_* environment variables.
package config

import (
	"time"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "AGENTSWARM_"

// Config is the root configuration.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Retry   RetryConfig   `yaml:"retry"`
	Model   ModelConfig   `yaml:"model"`
	Memory  MemoryConfig  `yaml:"memory"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`

	// Agents are configured in the file only.
	Agents []AgentConfig `yaml:"agents"`
}

// EngineConfig holds swarm run loop settings.
type EngineConfig struct {
	MaxConcurrency   int           `yaml:"max_concurrency"    env:"MAX_CONCURRENCY"`
	BlockingPoolSize int           `yaml:"blocking_pool_size" env:"BLOCKING_POOL_SIZE"`
	JoinCapacity     int           `yaml:"join_capacity"      env:"JOIN_CAPACITY"`
	JoinTTL          time.Duration `yaml:"join_ttl"           env:"JOIN_TTL"`
	DrainTimeout     time.Duration `yaml:"drain_timeout"      env:"DRAIN_TIMEOUT"`
}

// RetryConfig holds retry-validation loop settings.
type RetryConfig struct {
	MaxAttempts         int      `yaml:"max_attempts"         env:"MAX_ATTEMPTS"`
	SimilarityThreshold float64  `yaml:"similarity_threshold" env:"SIMILARITY_THRESHOLD"`
	Blocklist           []string `yaml:"blocklist"            env:"BLOCKLIST" envSeparator:","`

	// CallsPerWindow limits generation calls; zero disables limiting.
	CallsPerWindow int           `yaml:"calls_per_window" env:"CALLS_PER_WINDOW"`
	Window         time.Duration `yaml:"window"           env:"WINDOW"`
}

// ModelConfig selects and tunes the text generator.
type ModelConfig struct {
	// Provider is one of "openai", "anthropic" or "mock".
	Provider string `yaml:"provider" env:"PROVIDER"`
	Name     string `yaml:"name"     env:"NAME"`
	APIKey   string `yaml:"api_key"  env:"API_KEY"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL"`

	MaxTokens       int64    `yaml:"max_tokens"       env:"MAX_TOKENS"`
	Temperature     float64  `yaml:"temperature"      env:"TEMPERATURE"`
	PresencePenalty float64  `yaml:"presence_penalty" env:"PRESENCE_PENALTY"`
	Stop            []string `yaml:"stop"             env:"STOP" envSeparator:"|"`

	// EmbeddingModel enables embedding based ranking (openai only).
	EmbeddingModel string `yaml:"embedding_model" env:"EMBEDDING_MODEL"`
}

// MemoryConfig selects the conversation store.
type MemoryConfig struct {
	// Type is "memory" or "sqlite".
	Type     string `yaml:"type"      env:"TYPE"`
	Path     string `yaml:"path"      env:"PATH"`
	Window   int    `yaml:"window"    env:"WINDOW"`
	MaxChars int    `yaml:"max_chars" env:"MAX_CHARS"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level"      env:"LEVEL"`
	Format    string `yaml:"format"     env:"FORMAT"`
	AddSource bool   `yaml:"add_source" env:"ADD_SOURCE"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Addr    string `yaml:"addr"    env:"ADDR"`
}

// AgentConfig describes one persona.
type AgentConfig struct {
	Name            string   `yaml:"name"`
	Introduction    string   `yaml:"introduction"`
	Examples        []string `yaml:"examples"`
	PreConversation string   `yaml:"pre_conversation"`
	PreResponse     string   `yaml:"pre_response"`
	Topic           string   `yaml:"topic"`
	IgnoreTopics    []string `yaml:"ignore_topics"`
	DicerollSides   int      `yaml:"diceroll_sides"`

	// Ping defaults to true.
	Ping *bool `yaml:"ping"`
}

// PingEnabled reports whether the mention check is enabled.
func (a AgentConfig) PingEnabled() bool { return a.Ping == nil || *a.Ping }

// Defaults returns a Config with built-in defaults applied.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			MaxConcurrency: 16,
			JoinCapacity:   1024,
			DrainTimeout:   30 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:         5,
			SimilarityThreshold: 68,
			Window:              time.Minute,
		},
		Model: ModelConfig{
			Provider:        "openai",
			MaxTokens:       250,
			Temperature:     0.865,
			PresencePenalty: 0.23,
			Stop:            []string{">:", "\n(", "> :", ">"},
		},
		Memory: MemoryConfig{
			Type:     "memory",
			Path:     "messages.sqlite",
			Window:   15,
			MaxChars: 800,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}
