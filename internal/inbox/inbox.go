// Package inbox picks up queries typed into the GUI's query file.
package inbox

import (
	"context"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

const QueryFile = "UserQuery.data"

type Handler func(ctx context.Context, text string)

// Watcher consumes the query file whenever it changes: non empty content is
// handed to the handler and the file is cleared.
type Watcher struct {
	path    string
	handle  Handler
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func New(dir string, handle Handler) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:    filepath.Join(dir, QueryFile),
		handle:  handle,
		watcher: w,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

func (w *Watcher) Path() string { return w.path }

// Start consumes anything already waiting and then watches in the background.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create inbox dir: %w", err)
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.running = true

	log.Info("Watching typed queries", "file", w.path)

	w.Consume(ctx)
	go w.run(ctx)
	return nil
}

func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		log.Warn("Failed to close inbox watcher", "err", err)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.Consume(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("Inbox watcher error", "err", err)
		}
	}
}

// Consume reads and clears the query file. It reports whether a query was
// handled.
func (w *Watcher) Consume(ctx context.Context) bool {
	b, err := os.ReadFile(w.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("Failed to read query file", "err", err)
		}
		return false
	}

	text := strings.TrimSpace(string(b))
	if text == "" {
		return false
	}

	if err := os.WriteFile(w.path, nil, 0o644); err != nil {
		log.Warn("Failed to clear query file", "err", err)
	}

	log.Debug("Typed query", "text", text)
	w.handle(ctx, text)
	return true
}
