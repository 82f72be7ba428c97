// Package listen turns microphone input into utterances and drives the
// wake/command voice loop.
package listen

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"kashi/pkg/vad"
)

var (
	ErrTimeout = errors.New("nothing heard")
	ErrFailed  = errors.New("speech capture failed")
)

type Recorder interface {
	Record(ctx context.Context) ([]float32, error)
	DetectSnap(ctx context.Context, window time.Duration) (bool, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32) (string, error)
}

// Capturer records one utterance and transcribes it.
type Capturer struct {
	rec Recorder
	stt Transcriber
}

func NewCapturer(rec Recorder, stt Transcriber) *Capturer {
	return &Capturer{rec: rec, stt: stt}
}

// Capture returns the recognized text, ErrTimeout when nobody spoke, or an
// error wrapping ErrFailed.
func (c *Capturer) Capture(ctx context.Context) (string, error) {
	pcm, err := c.rec.Record(ctx)
	switch {
	case errors.Is(err, vad.ErrNoSpeech):
		return "", ErrTimeout
	case err != nil:
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: record: %v", ErrFailed, err)
	}

	log.Debug("Recorded", "samples", len(pcm))

	text, err := c.stt.Transcribe(ctx, pcm)
	if err != nil {
		return "", fmt.Errorf("%w: transcribe: %v", ErrFailed, err)
	}

	text = strings.TrimSpace(text)
	if text == "" || blank(text) {
		return "", ErrTimeout
	}
	return text, nil
}

func (c *Capturer) Snap(ctx context.Context, window time.Duration) bool {
	ok, err := c.rec.DetectSnap(ctx, window)
	if err != nil {
		log.Debug("Snap detection failed", "err", err)
		return false
	}
	return ok
}

// blank matches whisper's markers for silence.
func blank(text string) bool {
	switch strings.ToLower(text) {
	case "[blank_audio]", "[silence]", "(silence)", "[ silence ]":
		return true
	}
	return false
}
