package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentswarm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 1024, cfg.Engine.JoinCapacity)
	assert.Equal(t, 15, cfg.Memory.Window)
	assert.Equal(t, 800, cfg.Memory.MaxChars)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, `
engine:
  max_concurrency: 4
  join_ttl: 2m
retry:
  blocklist: [darn, heck]
model:
  provider: anthropic
  stop: ["\n<"]
memory:
  type: sqlite
  path: /tmp/chat.sqlite
agents:
  - name: Ziggy
    introduction: Ziggy is a robot.
    topic: burgers
    ping: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Engine.MaxConcurrency)
	assert.Equal(t, 2*time.Minute, cfg.Engine.JoinTTL)
	assert.Equal(t, 30*time.Second, cfg.Engine.DrainTimeout, "defaults survive partial files")
	assert.Equal(t, []string{"darn", "heck"}, cfg.Retry.Blocklist)
	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.Equal(t, []string{"\n<"}, cfg.Model.Stop)
	assert.Equal(t, "sqlite", cfg.Memory.Type)
	require.Len(t, cfg.Agents, 1)
	assert.Equal(t, "burgers", cfg.Agents[0].Topic)
	assert.False(t, cfg.Agents[0].PingEnabled())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "engine:\n  max_concurrency: 4\n")
	t.Setenv("AGENTSWARM_ENGINE_MAX_CONCURRENCY", "8")
	t.Setenv("AGENTSWARM_ENGINE_DRAIN_TIMEOUT", "5s")
	t.Setenv("AGENTSWARM_MODEL_PROVIDER", "mock")
	t.Setenv("AGENTSWARM_RETRY_BLOCKLIST", "a,b")
	t.Setenv("AGENTSWARM_LOG_LEVEL", "debug")
	t.Setenv("AGENTSWARM_METRICS_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Engine.MaxConcurrency)
	assert.Equal(t, 5*time.Second, cfg.Engine.DrainTimeout)
	assert.Equal(t, "mock", cfg.Model.Provider)
	assert.Equal(t, []string{"a", "b"}, cfg.Retry.Blocklist)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 250, int(cfg.Model.MaxTokens), "unset variables keep defaults")
}

func TestLoad_ConfigFromEnvPath(t *testing.T) {
	path := writeFile(t, "retry:\n  max_attempts: 3\n")
	t.Setenv("AGENTSWARM_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "engine: [not, a, map]"))
	assert.Error(t, err)

	t.Setenv("AGENTSWARM_ENGINE_MAX_CONCURRENCY", "lots")
	_, err = Load(writeFile(t, ""))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.Engine.JoinCapacity = 0
	cfg.Retry.MaxAttempts = 0
	cfg.Retry.SimilarityThreshold = 120
	cfg.Model.Provider = "gopher"
	cfg.Memory.Type = "sqlite"
	cfg.Memory.Path = ""
	cfg.Logging.Level = "loud"
	cfg.Logging.Format = "xml"
	cfg.Agents = []AgentConfig{{Name: "a"}, {Name: "a"}, {}}

	err := cfg.Validate()
	require.Error(t, err)
	for _, field := range []string{
		"engine.join_capacity",
		"retry.max_attempts",
		"retry.similarity_threshold",
		"model.provider",
		"memory.path",
		"logging.level",
		"logging.format",
		"agents[1].name",
		"agents[2].name",
	} {
		assert.Contains(t, err.Error(), field)
	}
}
