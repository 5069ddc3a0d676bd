package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":9090"
provider:
  kind: gemini
  model: gemini-2.0-flash
store:
  path: /tmp/test.db
pipeline:
  concurrency: 8
slack:
  channel: "#assignments"
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "gemini", cfg.Provider.Kind)
	assert.Equal(t, "gemini-2.0-flash", cfg.Provider.Model)
	assert.Equal(t, "/tmp/test.db", cfg.Store.Path)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	assert.Equal(t, "#assignments", cfg.Slack.Channel)
}

func TestLoadFromFileDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "sarek.db", cfg.Store.Path)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, "openai", cfg.Provider.Kind)
	assert.Equal(t, 300000, cfg.Pipeline.PollIntervalMS)
}

func TestEnvOverridesSecrets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider:\n  kind: anthropic\n"), 0o644))

	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("GITHUB_TOKEN", "ghp-test")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Provider.APIKey)
	assert.Equal(t, "ghp-test", cfg.GitHub.Token)
}

func TestConfigFileWinsOverEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider:\n  kind: openai\n  api_key: from-file\n"), 0o644))

	t.Setenv("OPENAI_API_KEY", "from-env")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Provider.APIKey)
}

func TestPollInterval(t *testing.T) {
	p := PipelineConfig{PollIntervalMS: 1500}
	assert.Equal(t, "1.5s", p.PollInterval().String())
}
