package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kashi/internal/assistant"
	"kashi/internal/memory"
)

var errNoMemory = errors.New("memory is not configured")

func (b *Bot) remember(ctx context.Context, sess assistant.Session, fact string) (string, error) {
	if b.memory == nil {
		return "", errNoMemory
	}

	added, err := b.memory.Remember(ctx, sess.UserID, fact)
	if errors.Is(err, memory.ErrEmpty) {
		return "What should I remember?", nil
	}
	if err != nil {
		return "", err
	}
	if !added {
		return fmt.Sprintf("I already remember that: %s.", strings.TrimSpace(fact)), nil
	}
	return fmt.Sprintf("Okay, I'll remember that: %s.", strings.TrimSpace(fact)), nil
}

func (b *Bot) forget(ctx context.Context, sess assistant.Session, text string) (string, error) {
	if b.memory == nil {
		return "", errNoMemory
	}

	n, err := b.memory.Forget(ctx, sess.UserID, text)
	if errors.Is(err, memory.ErrEmpty) {
		return "What should I forget?", nil
	}
	if err != nil {
		return "", err
	}
	if n == 0 {
		return fmt.Sprintf("I don't have anything saved about '%s'.", strings.TrimSpace(text)), nil
	}
	return fmt.Sprintf("Okay, I forgot %d fact(s) about '%s'.", n, strings.TrimSpace(text)), nil
}

func (b *Bot) setPreference(ctx context.Context, sess assistant.Session, payload string) (string, error) {
	if b.memory == nil {
		return "", errNoMemory
	}

	key, value, ok := memory.ParsePreference(payload)
	if !ok {
		return "Tell me the preference as '<name> = <value>'.", nil
	}
	if err := b.memory.SetPreference(ctx, sess.UserID, key, value); err != nil {
		return "", err
	}
	return fmt.Sprintf("Preference saved: %s = %s.", strings.ToLower(key), value), nil
}

// analyze splits "<path> <question>" and hands it to the analyzer.
func (b *Bot) analyze(ctx context.Context, payload string) (string, error) {
	if b.analyzer == nil {
		return "", errors.New("analysis is not configured")
	}

	path, question, _ := strings.Cut(strings.TrimSpace(payload), " ")
	if path == "" {
		return "Please provide a file path to analyze.", nil
	}
	return b.analyzer.Analyze(ctx, path, strings.TrimSpace(question))
}
