// Package imagegen renders image prompts to PNG files.
package imagegen

import (
	"context"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
	"strings"

	"kashi/internal/llm"
)

const maxNameRunes = 80

const qualitySuffix = "high detail, 4k resolution, photorealistic, artstation, cinematic lighting, masterpiece, sharp focus"

type Generator struct {
	backend llm.ImageGenerator
	dir     string
}

func New(backend llm.ImageGenerator, dir string) *Generator {
	return &Generator{backend: backend, dir: dir}
}

// Generate renders prompt and saves it as "<prompt>_<index>.png" in the
// output directory. It returns the file path.
func (g *Generator) Generate(ctx context.Context, prompt string, index int) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("empty image prompt")
	}

	img, err := g.backend.GenerateImage(ctx, Enhance(prompt))
	if err != nil {
		return "", fmt.Errorf("generate image: %w", err)
	}

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", g.dir, err)
	}

	path := filepath.Join(g.dir, FileName(prompt, index))
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}

	log.Info("Image saved", "path", path, "bytes", len(img))

	return path, nil
}

func Enhance(prompt string) string {
	return prompt + ", " + qualitySuffix
}

// FileName turns a prompt into a safe file name.
func FileName(prompt string, index int) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			return -1
		}
		return r
	}, strings.TrimSpace(prompt))

	if r := []rune(slug); len(r) > maxNameRunes {
		slug = string(r[:maxNameRunes])
	}
	return fmt.Sprintf("%s_%d.png", slug, index)
}
