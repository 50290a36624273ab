package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ARCHLENS_DB_PATH", "ARCHLENS_SYSTEM_PROMPT",
		"OPENAI_API_KEY", "MOONSHOT_API_KEY",
		"OPENAI_BASE_URL", "MOONSHOT_BASE_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "./archlens.db", cfg.Database.Path)
	require.Equal(t, 3, cfg.Ingest.MaxEntries)
	require.Equal(t, 10*time.Second, cfg.Ingest.ParseFetchTimeout())
	require.Equal(t, time.Hour, cfg.Schedule.ParseIngestInterval())
	require.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	require.NotEmpty(t, cfg.Sources)
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /tmp/test.db
ingest:
  max_entries: 5
  fetch_timeout: 3s
llm:
  model: kimi-k2-turbo-preview
sources:
  - id: netflix
    name: Netflix TechBlog
    url: https://netflixtechblog.com/feed
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "/tmp/test.db", cfg.Database.Path)
	require.Equal(t, 5, cfg.Ingest.MaxEntries)
	require.Equal(t, 3*time.Second, cfg.Ingest.ParseFetchTimeout())
	require.Equal(t, "kimi-k2-turbo-preview", cfg.LLM.Model)
	require.Len(t, cfg.Sources, 1)
	require.Equal(t, "netflix", cfg.Sources[0].ID)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestEnvOverridesFirstNonEmptyWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("MOONSHOT_API_KEY", "sk-moonshot")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "sk-openai", cfg.LLM.APIKey)
}

func TestEnvOverridesProviderAlias(t *testing.T) {
	clearEnv(t)
	t.Setenv("MOONSHOT_API_KEY", "sk-moonshot")
	t.Setenv("MOONSHOT_BASE_URL", "https://api.moonshot.cn/v1")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "sk-moonshot", cfg.LLM.APIKey)
	require.Equal(t, "https://api.moonshot.cn/v1", cfg.LLM.BaseURL)
}

func TestEnvOverridesDBPathAndPrompt(t *testing.T) {
	clearEnv(t)
	t.Setenv("ARCHLENS_DB_PATH", "/var/lib/archlens.db")
	t.Setenv("ARCHLENS_SYSTEM_PROMPT", "custom prompt")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "/var/lib/archlens.db", cfg.Database.Path)
	require.Equal(t, "custom prompt", cfg.LLM.SystemPrompt)
}
