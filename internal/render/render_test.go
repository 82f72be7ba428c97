package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"kashi/internal/assistant"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var sess = assistant.Session{UserID: "u1", Username: "Asha", Language: "hi", Channel: assistant.ChannelVoice}

func read(t *testing.T, dir, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(b)
}

func TestFilesWritesGuiFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gui")
	f, err := NewFiles(dir, "Kashi")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, f.Handle(ctx, assistant.Event{Kind: assistant.EventStatus, Text: "Thinking..."}))
	assert.Equal(t, "Thinking...", read(t, dir, StatusFile))

	require.NoError(t, f.Handle(ctx, assistant.Event{Kind: assistant.EventQuery, Session: sess, Text: "hi there"}))
	assert.Equal(t, "Asha : hi there", read(t, dir, ResponsesFile))

	require.NoError(t, f.Handle(ctx, assistant.Event{Kind: assistant.EventText, Session: sess, Text: "Hello!"}))
	assert.Equal(t, "Kashi : Hello!", read(t, dir, ResponsesFile))

	require.NoError(t, f.Handle(ctx, assistant.Event{Kind: assistant.EventImages, Images: []string{"a.png", "b.png"}}))
	assert.Equal(t, "a.png\nb.png", read(t, dir, ImagesFile))

	require.NoError(t, f.Handle(ctx, assistant.Event{Kind: assistant.EventSpeak, Text: "ignored"}))
}

func TestFilesSkipWebSessions(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFiles(dir, "Kashi")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, f.Handle(ctx, assistant.Event{Kind: assistant.EventText, Session: sess, Text: "Hello!"}))

	visitor := assistant.Session{UserID: "6f1c", Username: "Guest", Channel: assistant.ChannelWeb}
	for _, kind := range []assistant.EventKind{
		assistant.EventStatus, assistant.EventQuery, assistant.EventText, assistant.EventImages,
	} {
		require.NoError(t, f.Handle(ctx, assistant.Event{Kind: kind, Session: visitor, Text: "web", Images: []string{"w.png"}}))
	}

	assert.Equal(t, "Kashi : Hello!", read(t, dir, ResponsesFile))
	assert.NoFileExists(t, filepath.Join(dir, StatusFile))
	assert.NoFileExists(t, filepath.Join(dir, ImagesFile))
}

func TestFilesMicGate(t *testing.T) {
	f, err := NewFiles(t.TempDir(), "Kashi")
	require.NoError(t, err)

	assert.True(t, f.MicOn())

	require.NoError(t, f.SetMic(false))
	assert.False(t, f.MicOn())

	require.NoError(t, f.SetMic(true))
	assert.True(t, f.MicOn())
}

type speaker struct {
	mu    sync.Mutex
	said  []string
	langs []string
}

func (s *speaker) Speak(_ context.Context, text, lang string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.said = append(s.said, text)
	s.langs = append(s.langs, lang)
	return true
}

func TestDispatcherRunsSinksUntilClosed(t *testing.T) {
	sp := &speaker{}
	var kinds []assistant.EventKind
	record := SinkFunc(func(_ context.Context, ev assistant.Event) error {
		kinds = append(kinds, ev.Kind)
		return errors.New("ignored")
	})

	out := assistant.NewOutbox(8)
	ctx := context.Background()
	out.Emit(ctx, assistant.Event{Kind: assistant.EventText, Session: sess, Text: "hello"})
	out.Emit(ctx, assistant.Event{Kind: assistant.EventSpeak, Session: sess, Text: "hello"})
	out.Emit(ctx, assistant.Event{Kind: assistant.EventSpeak, Session: sess, Text: ""})
	out.Close()

	NewDispatcher(record, Speech(sp)).Run(ctx, out.Events())

	assert.Equal(t, []assistant.EventKind{assistant.EventText, assistant.EventSpeak, assistant.EventSpeak}, kinds)
	assert.Equal(t, []string{"hello"}, sp.said)
	assert.Equal(t, []string{"hi"}, sp.langs)
}

func TestDispatcherStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	NewDispatcher().Run(ctx, make(chan assistant.Event))
}
