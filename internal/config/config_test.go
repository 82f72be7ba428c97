package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"LLM_PROVIDER", "OPENAI_API_KEY", "GEMINI_API_KEY", "ASSISTANT_NAME", "USERNAME_DEFAULT",
	"INPUT_LANGUAGE", "SEARCH_PROVIDER", "GOOGLE_API_KEY", "GOOGLE_CX", "BING_API_KEY",
	"DATA_DIR", "GUI_FILES_DIR", "CHAT_MODEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "Kashi", cfg.AssistantName)
	assert.Equal(t, "User", cfg.Username)
	assert.Equal(t, "en", cfg.Language)
	assert.Equal(t, "duckduckgo", cfg.SearchProvider)
	assert.Equal(t, filepath.Join("data", "gui"), cfg.GuiFilesDir)
	assert.Equal(t, filepath.Join("data", "kashi.db"), cfg.DatabasePath())
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	for _, k := range keys {
		os.Unsetenv(k)
	}

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("OPENAI_API_KEY=sk-test\nASSISTANT_NAME=Jarvis\nDATA_DIR=/var/kashi\n"), 0o600))
	t.Cleanup(func() {
		for _, k := range keys {
			os.Unsetenv(k)
		}
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.OpenAIKey)
	assert.Equal(t, "Jarvis", cfg.AssistantName)
	assert.Equal(t, "/var/kashi/gui", cfg.GuiFilesDir)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingEnvFileIsFine(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		cfg  Config
		want string
	}{
		{Config{Provider: ProviderOpenAI}, "OPENAI_API_KEY"},
		{Config{Provider: ProviderGemini, OpenAIKey: "x"}, "GEMINI_API_KEY"},
		{Config{Provider: ProviderOpenAI, OpenAIKey: "x", SearchProvider: "google"}, "GOOGLE_API_KEY"},
		{Config{Provider: ProviderOpenAI, OpenAIKey: "x", SearchProvider: "google", GoogleAPIKey: "k"}, "GOOGLE_CX"},
		{Config{Provider: ProviderOpenAI, OpenAIKey: "x", SearchProvider: "bing"}, "BING_API_KEY"},
	}
	for _, tc := range cases {
		err := tc.cfg.Validate()
		require.ErrorIs(t, err, ErrMissing)
		assert.Contains(t, err.Error(), tc.want)
	}

	assert.Error(t, Config{Provider: "llama"}.Validate())
	assert.NoError(t, Config{Provider: ProviderGemini, GeminiKey: "g"}.Validate())
}
