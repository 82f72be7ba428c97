// Package config reads the assistant settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

var ErrMissing = errors.New("missing required setting")

type Config struct {
	Provider      string
	OpenAIKey     string
	GeminiKey     string
	ChatModel     string
	DecisionModel string
	ImageModel    string

	AssistantName string
	Username      string
	Language      string

	SearchProvider string
	GoogleAPIKey   string
	GoogleCX       string
	BingAPIKey     string

	WhisperModel string
	BeepFile     string

	DataDir     string
	GuiFilesDir string
}

// Load reads envFile when it exists and then the process environment.
// Values already set in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	dataDir := get("DATA_DIR", "data")

	return Config{
		Provider:      strings.ToLower(get("LLM_PROVIDER", ProviderOpenAI)),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		GeminiKey:     os.Getenv("GEMINI_API_KEY"),
		ChatModel:     os.Getenv("CHAT_MODEL"),
		DecisionModel: os.Getenv("DECISION_MODEL"),
		ImageModel:    os.Getenv("IMAGE_MODEL"),

		AssistantName: get("ASSISTANT_NAME", "Kashi"),
		Username:      get("USERNAME_DEFAULT", "User"),
		Language:      strings.ToLower(get("INPUT_LANGUAGE", "en")),

		SearchProvider: strings.ToLower(get("SEARCH_PROVIDER", "duckduckgo")),
		GoogleAPIKey:   os.Getenv("GOOGLE_API_KEY"),
		GoogleCX:       os.Getenv("GOOGLE_CX"),
		BingAPIKey:     os.Getenv("BING_API_KEY"),

		WhisperModel: get("WHISPER_MODEL", "third_party/whisper.cpp/models/ggml-base.bin"),
		BeepFile:     os.Getenv("BEEP_FILE"),

		DataDir:     dataDir,
		GuiFilesDir: get("GUI_FILES_DIR", filepath.Join(dataDir, "gui")),
	}, nil
}

// Validate names the first missing key. The image backend always needs an
// OpenAI key so a Gemini setup without one runs with image generation off.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY", ErrMissing)
		}
	case ProviderGemini:
		if c.GeminiKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissing)
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.Provider)
	}

	switch c.SearchProvider {
	case "google":
		if c.GoogleAPIKey == "" {
			return fmt.Errorf("%w: GOOGLE_API_KEY", ErrMissing)
		}
		if c.GoogleCX == "" {
			return fmt.Errorf("%w: GOOGLE_CX", ErrMissing)
		}
	case "bing":
		if c.BingAPIKey == "" {
			return fmt.Errorf("%w: BING_API_KEY", ErrMissing)
		}
	}

	return nil
}

func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "kashi.db")
}

func (c Config) ImagesDir() string {
	return filepath.Join(c.DataDir, "images")
}

func get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
