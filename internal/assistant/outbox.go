package assistant

import (
	"context"
	"sync"
)

type EventKind string

const (
	EventStatus EventKind = "status"
	EventQuery  EventKind = "query"
	EventText   EventKind = "text"
	EventSpeak  EventKind = "speak"
	EventImages EventKind = "images"
	EventExit   EventKind = "exit"
)

type Event struct {
	Kind    EventKind
	Session Session
	Text    string
	Images  []string
}

// Outbox carries status, text and speech events away from the orchestrator.
// Consumers render them at their own pace.
type Outbox struct {
	ch     chan Event
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

func NewOutbox(size int) *Outbox {
	if size < 1 {
		size = 64
	}
	return &Outbox{ch: make(chan Event, size)}
}

func (o *Outbox) Events() <-chan Event {
	return o.ch
}

// Emit queues ev. It gives up when ctx is done or the outbox is closed.
// A nil outbox discards everything.
func (o *Outbox) Emit(ctx context.Context, ev Event) {
	if o == nil {
		return
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return
	}

	select {
	case o.ch <- ev:
	case <-ctx.Done():
	}
}

func (o *Outbox) Close() {
	o.once.Do(func() {
		o.mu.Lock()
		o.closed = true
		close(o.ch)
		o.mu.Unlock()
	})
}
