// Package tts speaks assistant replies, shortening long answers and ducking
// other audio while it talks.
package tts

import (
	"context"
	log "log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

const (
	maxSentences = 4
	maxChars     = 250
	keepSentence = 2
	duckFactor   = 0.3
	duckFade     = 200 * time.Millisecond
)

var screenNotices = []string{
	"The rest of the result has been printed to the chat screen, kindly check it out.",
	"The rest of the text is now on the chat screen, please check it.",
	"You can see the rest of the text on the chat screen.",
	"The remaining part of the text is now on the chat screen.",
	"The rest of the answer is now on the chat screen.",
	"Please look at the chat screen, the rest of the answer is there.",
	"You'll find the complete answer on the chat screen.",
	"Please check the chat screen for more information.",
}

type Engine interface {
	Say(ctx context.Context, text, lang string) error
}

type Ducker interface {
	Duck(ctx context.Context, factor float64, dur time.Duration) error
	Restore(ctx context.Context, dur time.Duration) error
}

type Speaker struct {
	engine Engine
	ducker Ducker
	mu     sync.Mutex
}

// NewSpeaker builds a speaker. ducker may be nil.
func NewSpeaker(engine Engine, ducker Ducker) *Speaker {
	return &Speaker{engine: engine, ducker: ducker}
}

// Speak says text in lang and reports whether it succeeded. Only one reply
// is spoken at a time.
func (s *Speaker) Speak(ctx context.Context, text, lang string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ducker != nil {
		if err := s.ducker.Duck(ctx, duckFactor, duckFade); err != nil {
			log.Debug("Failed to duck audio", "err", err)
		}
		defer func() {
			if err := s.ducker.Restore(context.WithoutCancel(ctx), duckFade); err != nil {
				log.Debug("Failed to restore audio", "err", err)
			}
		}()
	}

	if err := s.engine.Say(ctx, Shorten(text, rand.IntN(len(screenNotices))), lang); err != nil {
		log.Error("Failed to voice out", "err", err)
		return false
	}

	return true
}

// Shorten keeps answers of more than four sentences and at least 250
// characters to their first two sentences followed by screen notice n.
func Shorten(text string, n int) string {
	text = strings.TrimSpace(text)

	var sentences []string
	for _, s := range strings.Split(text, ".") {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}

	if len(sentences) <= maxSentences || len(text) < maxChars {
		return text
	}

	short := strings.Join(sentences[:keepSentence], ". ") + "."
	return short + " " + screenNotices[n%len(screenNotices)]
}
