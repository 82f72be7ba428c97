package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kashi/internal/assistant"
	"kashi/internal/llm"
	"kashi/internal/memory"
	"kashi/internal/search"
	"kashi/pkg/task"
)

type recordingGen struct {
	system  string
	history []llm.Turn
	prompt  string
	reply   string
}

func (g *recordingGen) Generate(_ context.Context, system string, history []llm.Turn, prompt string) (string, error) {
	g.system, g.history, g.prompt = system, history, prompt
	return g.reply, nil
}

type fakeSearcher struct {
	results []search.Result
	err     error
}

func (f fakeSearcher) Search(context.Context, string) ([]search.Result, error) {
	return f.results, f.err
}

type fakeHistory []llm.Turn

func (h fakeHistory) Load(context.Context, string) ([]llm.Turn, error) { return h, nil }

type fakeMemory struct {
	facts []string
	prefs map[string]string
}

func (m *fakeMemory) Remember(_ context.Context, _ string, fact string) (bool, error) {
	if strings.TrimSpace(fact) == "" {
		return false, memory.ErrEmpty
	}
	for _, f := range m.facts {
		if f == fact {
			return false, nil
		}
	}
	m.facts = append(m.facts, fact)
	return true, nil
}

func (m *fakeMemory) Forget(_ context.Context, _ string, text string) (int, error) {
	var kept []string
	for _, f := range m.facts {
		if !strings.Contains(f, text) {
			kept = append(kept, f)
		}
	}
	n := len(m.facts) - len(kept)
	m.facts = kept
	return n, nil
}

func (m *fakeMemory) SetPreference(_ context.Context, _ string, key, value string) error {
	if m.prefs == nil {
		m.prefs = map[string]string{}
	}
	m.prefs[strings.ToLower(key)] = value
	return nil
}

func (m *fakeMemory) Profile(context.Context, string, string) (string, error) {
	return "User profile for Asha: likes tea", nil
}

type fakeAnalyzer struct{ path, question string }

func (a *fakeAnalyzer) Analyze(_ context.Context, path, question string) (string, error) {
	a.path, a.question = path, question
	return "a cat on a sofa", nil
}

var sess = assistant.Session{UserID: "u", Username: "Asha"}

func fixedNow() time.Time {
	return time.Date(2025, time.June, 25, 21, 5, 9, 0, time.UTC)
}

func TestPunctuate(t *testing.T) {
	assert.Equal(t, "What is go?", Punctuate("  What is Go  "))
	assert.Equal(t, "Open the door.", Punctuate("open the door!"))
	assert.Equal(t, "Can you help me?", Punctuate("can you help me."))
	assert.Equal(t, "", Punctuate("   "))
}

func TestPunctuateNonASCII(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"क्या हाल है", "क्या हाल है."},
		{"привет", "Привет."},
		{"élan vital", "Élan vital."},
		{"ÉCOLE", "École."},
		{"what is ñandú", "What is ñandú?"},
	} {
		got := Punctuate(tc.in)
		assert.Equal(t, tc.want, got)
		assert.True(t, utf8.ValidString(got), "invalid utf-8 for %q", tc.in)
	}
}

func TestAnswerBuildsPromptFromMemoryClockAndHistory(t *testing.T) {
	gen := &recordingGen{reply: "Go is a language.</s>\n\n\n  Made at Google.  "}
	hist := make(fakeHistory, 14)
	for i := range hist {
		hist[i] = llm.Turn{Role: llm.RoleUser, Content: "x"}
	}
	b := New(Deps{Generator: gen, History: hist, Memory: &fakeMemory{}}, Config{AssistantName: "Kashi", Now: fixedNow})

	got, err := b.Answer(context.Background(), sess, "what is go")

	require.NoError(t, err)
	assert.Equal(t, "Go is a language.\nMade at Google.", got)
	assert.Equal(t, "What is go?", gen.prompt)
	assert.Len(t, gen.history, historyTurns)
	assert.Contains(t, gen.system, "named Kashi")
	assert.Contains(t, gen.system, "User profile for Asha: likes tea")
	assert.Contains(t, gen.system, "Day: Wednesday\nDate: 25\nMonth: June\nYear: 2025\nTime: 21 hours : 05 minutes : 09 seconds.")
}

func TestRealtimeInjectsSearchResultsPerCall(t *testing.T) {
	gen := &recordingGen{reply: "It is sunny."}
	b := New(Deps{
		Generator: gen,
		Searcher:  fakeSearcher{results: []search.Result{{Title: "Weather", Description: "Sunny 30C"}}},
	}, Config{Now: fixedNow})

	got, err := b.Realtime(context.Background(), sess, "weather today in delhi")
	require.NoError(t, err)
	assert.Equal(t, "It is sunny.", got)
	assert.Contains(t, gen.system, "[start]\nTitle: Weather\nDescription: Sunny 30C")

	_, err = b.Answer(context.Background(), sess, "hello")
	require.NoError(t, err)
	assert.NotContains(t, gen.system, "[start]")
}

func TestRealtimeSurvivesSearchFailure(t *testing.T) {
	gen := &recordingGen{reply: "I could not find live data."}
	b := New(Deps{Generator: gen, Searcher: fakeSearcher{err: errors.New("offline")}}, Config{})

	got, err := b.Realtime(context.Background(), sess, "bitcoin price now")

	require.NoError(t, err)
	assert.Equal(t, "I could not find live data.", got)
}

func TestHandleMemoryTasks(t *testing.T) {
	mem := &fakeMemory{}
	b := New(Deps{Generator: &recordingGen{}, Memory: mem}, Config{})
	ctx := context.Background()

	got, err := b.Handle(ctx, sess, task.Task{Category: task.Remember, Payload: "I like football"})
	require.NoError(t, err)
	assert.Equal(t, "Okay, I'll remember that: I like football.", got)

	got, err = b.Handle(ctx, sess, task.Task{Category: task.Remember, Payload: "I like football"})
	require.NoError(t, err)
	assert.Equal(t, "I already remember that: I like football.", got)

	got, err = b.Handle(ctx, sess, task.Task{Category: task.Forget, Payload: "football"})
	require.NoError(t, err)
	assert.Equal(t, "Okay, I forgot 1 fact(s) about 'football'.", got)

	got, err = b.Handle(ctx, sess, task.Task{Category: task.Forget, Payload: "cricket"})
	require.NoError(t, err)
	assert.Equal(t, "I don't have anything saved about 'cricket'.", got)

	got, err = b.Handle(ctx, sess, task.Task{Category: task.SetPreference, Payload: "Language = hindi"})
	require.NoError(t, err)
	assert.Equal(t, "Preference saved: language = hindi.", got)
	assert.Equal(t, "hindi", mem.prefs["language"])
}

func TestHandleAnalyzeSplitsPathAndQuestion(t *testing.T) {
	an := &fakeAnalyzer{}
	b := New(Deps{Generator: &recordingGen{}, Analyzer: an}, Config{})

	got, err := b.Handle(context.Background(), sess,
		task.Task{Category: task.AnalyzeImage, Payload: "/tmp/cat.png what is this?"})

	require.NoError(t, err)
	assert.Equal(t, "a cat on a sofa", got)
	assert.Equal(t, "/tmp/cat.png", an.path)
	assert.Equal(t, "what is this?", an.question)
}

func TestHandleReminderIsAnsweredConversationally(t *testing.T) {
	gen := &recordingGen{reply: "Noted."}
	b := New(Deps{Generator: gen}, Config{})

	_, err := b.Handle(context.Background(), sess, task.Task{Category: task.Reminder, Payload: "9pm meeting"})

	require.NoError(t, err)
	assert.Equal(t, "Reminder 9pm meeting.", gen.prompt)
}
