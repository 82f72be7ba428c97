// Package vision answers questions about local media: images, text
// documents and audio recordings.
package vision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"kashi/internal/llm"
)

const (
	defaultImageQuestion = "What do you see in this image? Describe it in detail."
	defaultFileQuestion  = "What is this document about? Summarize its key contents."
	defaultAudioQuestion = "What is this recording about? Summarize it."

	maxDocumentChars = 12000
)

var ErrUnsupported = errors.New("unsupported file format")

var (
	imageTypes = map[string]string{
		".jpg": "image/jpeg", ".jpeg": "image/jpeg", ".png": "image/png",
		".bmp": "image/bmp", ".tiff": "image/tiff", ".webp": "image/webp",
	}
	textTypes  = map[string]bool{".txt": true, ".csv": true, ".md": true, ".json": true, ".log": true}
	audioTypes = map[string]bool{".wav": true, ".mp3": true, ".ogg": true, ".oga": true, ".opus": true}
)

// Transcriber turns an audio file into text.
type Transcriber interface {
	TranscribeFile(ctx context.Context, path string) (string, error)
}

type Analyzer struct {
	describer   llm.Describer
	gen         llm.Generator
	transcriber Transcriber
}

func New(describer llm.Describer, gen llm.Generator, transcriber Transcriber) *Analyzer {
	return &Analyzer{describer: describer, gen: gen, transcriber: transcriber}
}

// Analyze answers question about the file at path. Missing files and
// unsupported formats produce a message, not an error.
func (a *Analyzer) Analyze(ctx context.Context, path, question string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "File not found.", nil
	}

	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case imageTypes[ext] != "":
		return a.image(ctx, path, imageTypes[ext], or(question, defaultImageQuestion))
	case textTypes[ext]:
		return a.document(ctx, path, or(question, defaultFileQuestion))
	case audioTypes[ext]:
		return a.audio(ctx, path, or(question, defaultAudioQuestion))
	}

	return fmt.Sprintf("Unsupported file format: %s", ext), nil
}

func (a *Analyzer) image(ctx context.Context, path, mime, question string) (string, error) {
	if a.describer == nil {
		return "", fmt.Errorf("image: %w", ErrUnsupported)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	return a.describer.Describe(ctx, data, mime, question)
}

func (a *Analyzer) document(ctx context.Context, path, question string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("document is not text: %w", ErrUnsupported)
	}
	return a.summarize(ctx, filepath.Base(path), truncate(string(data)), question)
}

func (a *Analyzer) audio(ctx context.Context, path, question string) (string, error) {
	if a.transcriber == nil {
		return "", fmt.Errorf("audio: %w", ErrUnsupported)
	}
	text, err := a.transcriber.TranscribeFile(ctx, path)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "I couldn't hear any speech in that recording.", nil
	}
	return a.summarize(ctx, filepath.Base(path), truncate(text), question)
}

func (a *Analyzer) summarize(ctx context.Context, name, content, question string) (string, error) {
	prompt := fmt.Sprintf("Content of %s:\n%s\n\nQuestion: %s", name, content, question)
	return a.gen.Generate(ctx, "You analyze files for the user. Answer briefly and only from the content given.", nil, prompt)
}

func truncate(s string) string {
	if len(s) <= maxDocumentChars {
		return s
	}
	cut := maxDocumentChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n[truncated]"
}

func or(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
