package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Agent.MaxIterations)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("QUORUM_TEST_KEY", "sk-sekret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  model: gpt-4o
  api_key: ${QUORUM_TEST_KEY}
agent:
  max_iterations: 5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-sekret", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.Agent.MaxIterations)
	// Unset sections keep defaults.
	assert.Equal(t, "quorum.db", cfg.Store.Path)
}

func TestValidateRejectsBadLevel(t *testing.T) {
	cfg := Default()
	cfg.Logger.Level = "loud"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptyModel(t *testing.T) {
	cfg := Default()
	cfg.LLM.Model = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateFixesNonPositiveIterations(t *testing.T) {
	cfg := Default()
	cfg.Agent.MaxIterations = -1
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Agent.MaxIterations)
}
