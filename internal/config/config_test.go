package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privadoc/privadoc/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing-means-empty.yaml"))
	require.Error(t, err, "explicit missing path is an error")

	cfg, err = config.Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "privadoc", cfg.App.Name)
	assert.Equal(t, "127.0.0.1", cfg.App.Host)
	assert.Equal(t, 8756, cfg.App.Port)
	assert.Equal(t, "llama3.2:3b", cfg.Model.Name)
	assert.Equal(t, "http://localhost:11434", cfg.Model.Host)
	assert.Equal(t, 8192, cfg.Model.ContextWindow)
	assert.Equal(t, 512, cfg.Engine.OverlapTokens)
	assert.Equal(t, 1, cfg.Engine.Retries)
	assert.Equal(t, 50, cfg.Database.MaxSummaries)
	assert.Equal(t, int64(50)<<20, cfg.MaxFileSizeBytes())
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  port: 9001
model:
  name: mistral:7b
  context_window: 4096
  max_response_tokens: 512
engine:
  overlap_tokens: 128
database:
  path: /tmp/alt.db
  max_summaries: 10
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.App.Port)
	assert.Equal(t, "mistral:7b", cfg.Model.Name)
	assert.Equal(t, 4096, cfg.Model.ContextWindow)
	assert.Equal(t, 128, cfg.Engine.OverlapTokens)
	assert.Equal(t, "/tmp/alt.db", cfg.Database.Path)
	assert.Equal(t, 10, cfg.Database.MaxSummaries)
	// Untouched sections keep their defaults.
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestExplicitZeroSurvivesDefaults(t *testing.T) {
	path := writeConfig(t, `
model:
  temperature: 0
documents:
  max_pages: 0
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Zero(t, cfg.Model.Temperature, "temperature 0 is a deliberate deterministic choice")
	assert.Zero(t, cfg.Documents.MaxPages, "max_pages 0 disables the page cap")
	// Keys the file leaves out still get their defaults.
	assert.Equal(t, 1024, cfg.Model.MaxResponseTokens)
	assert.Equal(t, 50, cfg.Documents.MaxFileSizeMB)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "http://10.0.0.5:11434")
	t.Setenv("DB_ENCRYPTION_KEY", "hunter2")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEBUG", "true")
	t.Setenv("PORT", "9100")

	cfg, err := config.Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:11434", cfg.Model.Host)
	assert.Equal(t, "hunter2", cfg.Database.Passphrase)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.App.Debug)
	assert.Equal(t, 9100, cfg.App.Port)
}

func TestValidateRejectsBadWindowSplit(t *testing.T) {
	path := writeConfig(t, `
model:
  context_window: 1024
  max_response_tokens: 2048
`)
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_response_tokens")
}

func TestValidateRejectsTemplateWithoutPlaceholder(t *testing.T) {
	path := writeConfig(t, `
templates:
  - key: broken
    pattern: "no placeholder here"
`)
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{text}")
}

func TestValidateCollectsAllProblems(t *testing.T) {
	path := writeConfig(t, `
app:
  port: 70000
model:
  host: "not-a-url"
documents:
  max_file_size_mb: -1
`)
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.port")
	assert.Contains(t, err.Error(), "model.host")
	assert.Contains(t, err.Error(), "max_file_size_mb")
}
