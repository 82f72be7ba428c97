// Package llm wraps the text generation services the assistant talks to.
package llm

import (
	"context"
	"errors"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

var ErrEmptyResponse = errors.New("empty model response")

// Generator produces a completion for prompt given a system preamble and
// the prior turns.
type Generator interface {
	Generate(ctx context.Context, system string, history []Turn, prompt string) (string, error)
}

// ImageGenerator renders a prompt into an encoded PNG.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// Describer answers a question about an image.
type Describer interface {
	Describe(ctx context.Context, image []byte, mime, question string) (string, error)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(ctx context.Context, system string, history []Turn, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, system string, history []Turn, prompt string) (string, error) {
	return f(ctx, system, history, prompt)
}
