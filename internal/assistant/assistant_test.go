package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"kashi/internal/automation"
	"kashi/pkg/task"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClassifier struct {
	out []string
	err error
}

func (f fakeClassifier) Classify(context.Context, string) ([]task.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []task.Task
	for _, s := range f.out {
		t, ok := task.Parse(s)
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeAnswerer struct {
	delay   map[string]time.Duration
	release chan struct{}
	fail    map[string]bool
	panics  map[string]bool
}

func (f *fakeAnswerer) answer(ctx context.Context, prefix, q string) (string, error) {
	if f.panics[q] {
		panic("handler exploded")
	}
	if f.fail[q] {
		return "", errors.New("backend down")
	}
	if d, ok := f.delay[q]; ok {
		select {
		case <-time.After(d):
		case <-f.release:
		}
	}
	return prefix + ":" + q, nil
}

func (f *fakeAnswerer) Handle(ctx context.Context, _ Session, t task.Task) (string, error) {
	return f.answer(ctx, "G", t.Payload)
}

func (f *fakeAnswerer) Realtime(ctx context.Context, _ Session, q string) (string, error) {
	return f.answer(ctx, "R", q)
}

type fakeAutomator struct {
	ran   [][]task.Task
	mu    sync.Mutex
	fails map[string]bool
}

func (f *fakeAutomator) Run(_ context.Context, tasks []task.Task) automation.Report {
	f.mu.Lock()
	f.ran = append(f.ran, tasks)
	f.mu.Unlock()

	var rep automation.Report
	for _, t := range tasks {
		var err error
		if f.fails[t.String()] {
			err = errors.New("failed")
		}
		rep.Outcomes = append(rep.Outcomes, automation.Outcome{Task: t, Err: err})
	}
	return rep
}

type fakeImages struct{}

func (fakeImages) Generate(_ context.Context, prompt string, index int) (string, error) {
	if prompt == "broken" {
		return "", errors.New("no image")
	}
	return fmt.Sprintf("%s_%d.png", prompt, index), nil
}

type fakeHistory struct {
	mu    sync.Mutex
	pairs [][2]string
}

func (h *fakeHistory) Append(_ context.Context, _ string, q, r string) error {
	h.mu.Lock()
	h.pairs = append(h.pairs, [2]string{q, r})
	h.mu.Unlock()
	return nil
}

var voice = Session{UserID: "u1", Username: "Asha", Language: "en", Channel: ChannelVoice}

func drain(o *Outbox) []Event {
	o.Close()
	var out []Event
	for ev := range o.Events() {
		out = append(out, ev)
	}
	return out
}

func TestProcessMixedBuckets(t *testing.T) {
	auto := &fakeAutomator{}
	hist := &fakeHistory{}
	out := NewOutbox(256)
	o := New(Deps{
		Classifier: fakeClassifier{out: []string{
			"open chrome", "general tell me a joke", "realtime weather today",
			"generate image a cat", "open firefox",
		}},
		Answerer:  &fakeAnswerer{},
		Automator: auto,
		Images:    fakeImages{},
		History:   hist,
		Outbox:    out,
	})

	reply := o.Process(context.Background(), voice, "do lots of things")

	assert.Equal(t, "R:weather today\n\nG:tell me a joke\n\nGenerated 1 image(s).", reply.Text)
	assert.Equal(t, []string{"a cat_1.png"}, reply.Images)
	assert.False(t, reply.Exit)
	require.Len(t, auto.ran, 1)
	assert.Equal(t, []string{"open chrome", "open firefox"}, task.Strings(auto.ran[0]))
	assert.Equal(t, [][2]string{{"do lots of things", reply.Text}}, hist.pairs)

	var kinds []EventKind
	for _, ev := range drain(out) {
		kinds = append(kinds, ev.Kind)
	}
	assert.Contains(t, kinds, EventSpeak)
	assert.Contains(t, kinds, EventImages)
}

func TestProcessMergeOrderIgnoresCompletionOrder(t *testing.T) {
	ans := &fakeAnswerer{delay: map[string]time.Duration{"slow realtime today": 50 * time.Millisecond}}
	o := New(Deps{
		Classifier: fakeClassifier{out: []string{"realtime slow realtime today", "general fast"}},
		Answerer:   ans,
	})

	reply := o.Process(context.Background(), voice, "q")

	assert.Equal(t, "R:slow realtime today\n\nG:fast", reply.Text)
}

func TestProcessItemTimeoutIsIsolated(t *testing.T) {
	ans := &fakeAnswerer{
		delay:   map[string]time.Duration{"stuck": time.Hour},
		release: make(chan struct{}),
	}
	defer close(ans.release)

	o := New(Deps{
		Classifier: fakeClassifier{out: []string{"general one", "general stuck", "general three", "realtime news today"}},
		Answerer:   ans,
		Timeouts:   Timeouts{General: 30 * time.Millisecond},
	})

	reply := o.Process(context.Background(), voice, "q")

	assert.Equal(t, "R:news today\n\nG:one\n\n'stuck' timed out.\n\nG:three", reply.Text)
}

func TestProcessPanicAndErrorDegradePerItem(t *testing.T) {
	ans := &fakeAnswerer{
		fail:   map[string]bool{"bad": true},
		panics: map[string]bool{"boom": true},
	}
	o := New(Deps{
		Classifier: fakeClassifier{out: []string{"general bad", "general boom", "general fine"}},
		Answerer:   ans,
	})

	reply := o.Process(context.Background(), voice, "q")

	assert.Equal(t, "Sorry, I couldn't answer 'bad'.\n\nSorry, I couldn't answer 'boom'.\n\nG:fine", reply.Text)
}

func TestProcessAutomationSummaryIsFallback(t *testing.T) {
	o := New(Deps{
		Classifier: fakeClassifier{out: []string{"open a", "open b", "close whatsapp", "open d"}},
		Automator:  &fakeAutomator{fails: map[string]bool{"close whatsapp": true}},
	})

	reply := o.Process(context.Background(), voice, "q")

	assert.Equal(t, "3 of 4 actions completed; failed: close whatsapp", reply.Text)
}

func TestProcessExitSkipsOtherBuckets(t *testing.T) {
	auto := &fakeAutomator{}
	hist := &fakeHistory{}
	var exited atomic.Bool
	out := NewOutbox(64)
	o := New(Deps{
		Classifier: fakeClassifier{out: []string{"open chrome", "exit"}},
		Automator:  auto,
		History:    hist,
		Outbox:     out,
		OnExit:     func() { exited.Store(true) },
	})

	reply := o.Process(context.Background(), voice, "open chrome and bye")

	assert.True(t, reply.Exit)
	assert.Equal(t, "Okay, bye!", reply.Text)
	assert.Empty(t, auto.ran)
	assert.Empty(t, hist.pairs)
	assert.True(t, exited.Load())

	evs := drain(out)
	require.NotEmpty(t, evs)
	assert.Equal(t, EventExit, evs[len(evs)-1].Kind)
}

func TestProcessExitFromWebDoesNotStopProcess(t *testing.T) {
	var exited atomic.Bool
	o := New(Deps{
		Classifier: fakeClassifier{out: []string{"exit"}},
		OnExit:     func() { exited.Store(true) },
	})

	reply := o.Process(context.Background(), Session{UserID: "w", Channel: ChannelWeb}, "bye")

	assert.True(t, reply.Exit)
	assert.False(t, exited.Load())
}

func TestProcessClassifierFailure(t *testing.T) {
	hist := &fakeHistory{}
	o := New(Deps{Classifier: fakeClassifier{err: errors.New("down")}, History: hist})

	reply := o.Process(context.Background(), voice, "hello")

	assert.Equal(t, "Sorry, I couldn't process that request.", reply.Text)
	assert.Empty(t, hist.pairs)
}

func TestProcessNoTasks(t *testing.T) {
	o := New(Deps{Classifier: fakeClassifier{}})

	reply := o.Process(context.Background(), voice, "hmm")

	assert.Equal(t, "I'm not sure how to help with that.", reply.Text)
}

func TestProcessEmptyUtterance(t *testing.T) {
	o := New(Deps{Classifier: fakeClassifier{err: errors.New("must not be called")}})

	assert.Equal(t, Reply{}, o.Process(context.Background(), voice, "   "))
}

func TestProcessFailedImageIsOmitted(t *testing.T) {
	o := New(Deps{
		Classifier: fakeClassifier{out: []string{"generate image broken", "generate image a dog"}},
		Images:     fakeImages{},
	})

	reply := o.Process(context.Background(), voice, "q")

	assert.Equal(t, []string{"a dog_2.png"}, reply.Images)
	assert.Equal(t, "Done.\n\nGenerated 1 image(s).", reply.Text)
}

func TestWebSessionIsNotSpoken(t *testing.T) {
	out := NewOutbox(64)
	o := New(Deps{Classifier: fakeClassifier{out: []string{"general hi"}}, Answerer: &fakeAnswerer{}, Outbox: out})

	o.Process(context.Background(), Session{UserID: "w", Channel: ChannelWeb}, "hi")

	for _, ev := range drain(out) {
		assert.NotEqual(t, EventSpeak, ev.Kind)
	}
}

func TestUserLocksArePrunedAfterProcessing(t *testing.T) {
	o := New(Deps{Classifier: fakeClassifier{out: []string{"general hi"}}, Answerer: &fakeAnswerer{}})

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Process(context.Background(), Session{UserID: fmt.Sprintf("anon-%d", i), Channel: ChannelWeb}, "hi")
		}()
	}
	wg.Wait()

	assert.Zero(t, o.activeUsers())
}

func TestSameUserIsSerialized(t *testing.T) {
	o := New(Deps{})

	o.lockUser("u1")
	acquired := make(chan struct{})
	go func() {
		o.lockUser("u1")
		close(acquired)
		o.unlockUser("u1")
	}()

	require.Eventually(t, func() bool {
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.users["u1"].refs == 2
	}, time.Second, 5*time.Millisecond)

	select {
	case <-acquired:
		t.Fatal("second utterance ran while the first was in flight")
	default:
	}

	o.unlockUser("u1")
	<-acquired
	require.Eventually(t, func() bool { return o.activeUsers() == 0 }, time.Second, 5*time.Millisecond)
}
