// Package render delivers orchestrator events to the places a user can see
// or hear them.
package render

import (
	"context"
	log "log/slog"

	"kashi/internal/assistant"
)

type Sink interface {
	Handle(ctx context.Context, ev assistant.Event) error
}

type SinkFunc func(ctx context.Context, ev assistant.Event) error

func (f SinkFunc) Handle(ctx context.Context, ev assistant.Event) error { return f(ctx, ev) }

type Speaker interface {
	Speak(ctx context.Context, text, lang string) bool
}

// Speech speaks every speak event in the session language.
func Speech(s Speaker) Sink {
	return SinkFunc(func(ctx context.Context, ev assistant.Event) error {
		if ev.Kind == assistant.EventSpeak && ev.Text != "" {
			s.Speak(ctx, ev.Text, ev.Session.Lang())
		}
		return nil
	})
}

// Dispatcher hands each event to every sink in order.
type Dispatcher struct {
	sinks []Sink
}

func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks}
}

// Run consumes events until the channel is closed or ctx is done.
func (d *Dispatcher) Run(ctx context.Context, events <-chan assistant.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			d.Dispatch(ctx, ev)
		}
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, ev assistant.Event) {
	for _, s := range d.sinks {
		if err := s.Handle(ctx, ev); err != nil {
			log.Warn("Failed to render", "kind", ev.Kind, "err", err)
		}
	}
}
