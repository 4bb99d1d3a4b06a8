package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_PATH", "")
	for _, names := range envBindings {
		for _, name := range names {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "v1", cfg.Agent.APIVersion)
	assert.Equal(t, 600*time.Millisecond, cfg.Agent.PollInterval)
	assert.Equal(t, 90*time.Second, cfg.Agent.Timeout)
	assert.Equal(t, "exclusive", cfg.BackendPolicy)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.True(t, cfg.Search.Enabled)
	assert.False(t, cfg.Auth.AllowSignup)
	assert.False(t, cfg.AgentConfigured())
	assert.Nil(t, cfg.AgentMissing())
}

func TestLoadAgentAliases(t *testing.T) {
	clearEnv(t)
	t.Setenv("AZURE_EXISTING_AIPROJECT_ENDPOINT", "https://proj.example.com/api/projects/p1/")
	t.Setenv("AZURE_EXISTING_AGENT_ID", "  asst_123  ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://proj.example.com/api/projects/p1", cfg.Agent.Endpoint)
	assert.Equal(t, "asst_123", cfg.Agent.AssistantID)
	assert.True(t, cfg.AgentConfigured())
}

func TestLoadPrimaryNameWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("AI_FOUNDRY_ASSISTANT_ID", "primary")
	t.Setenv("AZURE_EXISTING_AGENT_ID", "alias")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "primary", cfg.Agent.AssistantID)
}

func TestLoadBlankPrimaryFallsBackToAlias(t *testing.T) {
	clearEnv(t)
	t.Setenv("AI_FOUNDRY_PROJECT_ENDPOINT", "   ")
	t.Setenv("AZURE_EXISTING_AIPROJECT_ENDPOINT", "https://proj.example.com/api/projects/p1")
	t.Setenv("AI_FOUNDRY_ASSISTANT_ID", "asst_123")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://proj.example.com/api/projects/p1", cfg.Agent.Endpoint)
	assert.True(t, cfg.AgentConfigured())
	assert.Nil(t, cfg.AgentMissing())
}

func TestAgentMissingWhenPartiallyConfigured(t *testing.T) {
	clearEnv(t)
	t.Setenv("AI_FOUNDRY_PROJECT_ENDPOINT", "https://proj.example.com")
	t.Setenv("AI_FOUNDRY_ASSISTANT_ID", "   ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.AgentConfigured())
	assert.Equal(t, []string{"AI_FOUNDRY_ASSISTANT_ID (or AZURE_EXISTING_AGENT_ID)"}, cfg.AgentMissing())
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "regulaite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend_policy: best-effort
agent:
  timeout: 30s
retrieval:
  top_k: 4
`), 0o644))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("RETRIEVAL_TOP_K", "12")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "best-effort", cfg.BackendPolicy)
	assert.Equal(t, 30*time.Second, cfg.Agent.Timeout)
	assert.Equal(t, 12, cfg.Retrieval.TopK)
}

func TestParseUsers(t *testing.T) {
	users := ParseUsers(" alice:secret , bob:pw,broken,:nouser,carol: ")
	assert.Equal(t, map[string]string{"alice": "secret", "bob": "pw"}, users)
	assert.Empty(t, ParseUsers(""))
}
