package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"kashi/internal/assistant"
)

const (
	StatusFile    = "Status.data"
	ResponsesFile = "Responses.data"
	MicFile       = "Mic.data"
	ImagesFile    = "Images.data"
)

// Files writes the plain text files the desktop GUI polls.
type Files struct {
	dir       string
	assistant string

	mu sync.Mutex
}

func NewFiles(dir, assistantName string) (*Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create gui dir: %w", err)
	}
	return &Files{dir: dir, assistant: assistantName}, nil
}

// Handle renders events of the local desktop session. Web sessions have
// their own screen and are skipped.
func (f *Files) Handle(_ context.Context, ev assistant.Event) error {
	if ev.Session.Channel == assistant.ChannelWeb {
		return nil
	}

	switch ev.Kind {
	case assistant.EventStatus:
		return f.write(StatusFile, ev.Text)
	case assistant.EventQuery:
		return f.write(ResponsesFile, ev.Session.Username+" : "+ev.Text)
	case assistant.EventText:
		return f.write(ResponsesFile, f.assistant+" : "+ev.Text)
	case assistant.EventImages:
		return f.write(ImagesFile, strings.Join(ev.Images, "\n"))
	}
	return nil
}

// MicOn reads the GUI microphone toggle. A missing file counts as on.
func (f *Files) MicOn() bool {
	b, err := os.ReadFile(filepath.Join(f.dir, MicFile))
	if err != nil {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(string(b)), "true")
}

func (f *Files) SetMic(on bool) error {
	v := "False"
	if on {
		v = "True"
	}
	return f.write(MicFile, v)
}

func (f *Files) write(name, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return os.WriteFile(filepath.Join(f.dir, name), []byte(content), 0o644)
}
