package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp moves the test into an empty directory so Load's .env and
// faceanalyzer.yaml lookups only see files the test writes.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

// clearEnv unsets keys for the test; t.Setenv restores the previous values,
// including anything godotenv exports during the test.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_NoFileFallsBackToDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.GetInt("server.port"))
	assert.Equal(t, "openai", cfg.GetString("llm.provider"))
	assert.Equal(t, 90*time.Second, cfg.GetDuration("llm.timeout"))
	assert.False(t, cfg.GetBool("history.enabled"))
}

func TestLoad_FindsConfigInWorkingDirectory(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "faceanalyzer.yaml"),
		[]byte("recommend:\n  limit: 2\nhistory:\n  enabled: true\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.GetInt("recommend.limit"))
	assert.True(t, cfg.GetBool("history.enabled"))
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faceanalyzer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_DotEnvFeedsOverrides(t *testing.T) {
	dir := chdirTemp(t)
	clearEnv(t, "FACEANALYZER_LLM_PROVIDER", "OPENAI_API_KEY", "FACEANALYZER_LLM_OPENAI_API_KEY")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("FACEANALYZER_LLM_PROVIDER=ollama\nOPENAI_API_KEY=sk-from-dotenv\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.GetString("llm.provider"))
	assert.Equal(t, "sk-from-dotenv", cfg.GetString("llm.openai.api_key"))
}

func TestLoad_PrefixedVariableWinsOverBareName(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PORT", "8080")
	t.Setenv("FACEANALYZER_SERVER_PORT", "9090")
	t.Setenv("OPENAI_API_KEY", "sk-bare")
	t.Setenv("FACEANALYZER_LLM_OPENAI_API_KEY", "sk-prefixed")

	cfg, err := Load("")
	require.NoError(t, err)
	s, err := cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, 9090, s.Server.Port)
	assert.Equal(t, "sk-prefixed", s.LLM.OpenAI.APIKey)
}

func TestLoad_NestedKeysFromEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("FACEANALYZER_LLM_BREAKER_MAX_FAILURES", "2")
	t.Setenv("FACEANALYZER_SERVER_RATE_LIMIT_RPS", "0.5")
	t.Setenv("FACEANALYZER_LLM_OLLAMA_URL", "http://gpu-box:11434")

	cfg, err := Load("")
	require.NoError(t, err)
	s, err := cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), s.LLM.Breaker.MaxFailures)
	assert.Equal(t, 0.5, s.Server.RateLimit.RPS)
	assert.Equal(t, "http://gpu-box:11434", s.LLM.Ollama.URL)
}

func TestSub_SettingsSubtrees(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faceanalyzer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  breaker:
    enabled: false
    max_failures: 7
    timeout: 1m
`), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)

	var breaker BreakerSettings
	require.NoError(t, cfg.Sub("llm.breaker").Unmarshal(&breaker))
	assert.False(t, breaker.Enabled)
	assert.Equal(t, uint32(7), breaker.MaxFailures)
	assert.Equal(t, time.Minute, breaker.Timeout)

	var history HistorySettings
	require.NoError(t, cfg.Sub("history").Unmarshal(&history))
	assert.Equal(t, "faceanalyzer.db", history.Path)
}

func TestNilConfigReturnsZeroValues(t *testing.T) {
	for _, cfg := range []*Config{New(nil), New(nil).Sub("llm"), (&Config{}).Sub("missing")} {
		assert.Empty(t, cfg.GetString("llm.provider"))
		assert.Zero(t, cfg.GetInt("server.port"))
		assert.False(t, cfg.IsSet("server.port"))
		var s Settings
		assert.NoError(t, cfg.Unmarshal(&s))
	}
}
