package assistant

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"kashi/internal/automation"
	"kashi/pkg/task"
	"kashi/pkg/util"
)

const (
	msgClassifyFailed = "Sorry, I couldn't process that request."
	msgNoTasks        = "I'm not sure how to help with that."
	msgFarewell       = "Okay, bye!"
	msgAutoTimeout    = "Automation timed out."
	msgAutoFailed     = "Automation failed."
)

type Classifier interface {
	Classify(ctx context.Context, utterance string) ([]task.Task, error)
}

// Answerer produces narrative answers for general and realtime items.
type Answerer interface {
	Handle(ctx context.Context, sess Session, t task.Task) (string, error)
	Realtime(ctx context.Context, sess Session, query string) (string, error)
}

type Automator interface {
	Run(ctx context.Context, tasks []task.Task) automation.Report
}

type ImageMaker interface {
	Generate(ctx context.Context, prompt string, index int) (string, error)
}

type Recorder interface {
	Append(ctx context.Context, userID, query, reply string) error
}

type Deps struct {
	Classifier Classifier
	Answerer   Answerer
	Automator  Automator
	Images     ImageMaker
	History    Recorder
	Outbox     *Outbox
	Timeouts   Timeouts
	// OnExit runs after the farewell when a non web session says goodbye.
	OnExit func()
}

type Orchestrator struct {
	deps     Deps
	timeouts Timeouts

	mu    sync.Mutex
	users map[string]*userLock
}

// userLock is dropped from the map once nobody holds or waits for it.
type userLock struct {
	sync.Mutex
	refs int
}

func New(d Deps) *Orchestrator {
	return &Orchestrator{
		deps:     d,
		timeouts: d.Timeouts.withDefaults(),
		users:    make(map[string]*userLock),
	}
}

// Process handles one utterance. It never returns an error: every failure
// ends up as text in the reply. Utterances of the same user run one at a time.
func (o *Orchestrator) Process(ctx context.Context, sess Session, utterance string) Reply {
	o.lockUser(sess.UserID)
	defer o.unlockUser(sess.UserID)

	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return Reply{}
	}

	o.status(ctx, sess, "Listening...")
	o.deps.Outbox.Emit(ctx, Event{Kind: EventQuery, Session: sess, Text: utterance})
	o.status(ctx, sess, "Thinking...")

	tasks, err := o.deps.Classifier.Classify(ctx, utterance)
	if err != nil {
		log.Error("Failed to classify", "user", sess.UserID, "err", err)
		return o.finish(ctx, sess, Reply{Text: msgClassifyFailed})
	}
	if len(tasks) == 0 {
		return o.finish(ctx, sess, Reply{Text: msgNoTasks})
	}

	log.Info("Classified", "user", sess.UserID, "tasks", task.Strings(tasks))

	b := task.Group(tasks)

	if b.Exit {
		reply := o.finish(ctx, sess, Reply{Text: msgFarewell, Exit: true})
		o.deps.Outbox.Emit(ctx, Event{Kind: EventExit, Session: sess})
		if sess.Channel != ChannelWeb && o.deps.OnExit != nil {
			o.deps.OnExit()
		}
		return reply
	}

	reply := o.execute(ctx, sess, b)
	reply = o.finish(ctx, sess, reply)

	if o.deps.History != nil {
		if err := o.deps.History.Append(ctx, sess.UserID, utterance, reply.Text); err != nil {
			log.Error("Failed to save history", "user", sess.UserID, "err", err)
		}
	}

	return reply
}

// execute runs every non empty bucket concurrently and merges the results.
func (o *Orchestrator) execute(ctx context.Context, sess Session, b task.Buckets) Reply {
	var (
		automationOut string
		generalOut    []string
		realtimeOut   []string
		imagesOut     []string
	)

	var g errgroup.Group

	if len(b.Automation) > 0 {
		g.Go(o.bucket("automation", func() { automationOut = o.runAutomation(ctx, sess, b.Automation) },
			func(err error) { automationOut = msgAutoFailed }))
	}
	if len(b.General) > 0 {
		g.Go(o.bucket("general", func() { generalOut = o.runGeneral(ctx, sess, b.General) },
			func(err error) { generalOut = []string{bucketError("general")} }))
	}
	if len(b.Realtime) > 0 {
		g.Go(o.bucket("realtime", func() { realtimeOut = o.runRealtime(ctx, sess, b.Realtime) },
			func(err error) { realtimeOut = []string{bucketError("realtime")} }))
	}
	if len(b.Images) > 0 {
		g.Go(o.bucket("images", func() { imagesOut = o.runImages(ctx, sess, b.Images) },
			func(err error) { imagesOut = nil }))
	}

	_ = g.Wait()

	var images []string
	for _, p := range imagesOut {
		if p != "" {
			images = append(images, p)
		}
	}

	return Reply{
		Text:   Merge(realtimeOut, generalOut, automationOut, images),
		Images: images,
	}
}

// bucket wraps a bucket runner so a panic degrades only that bucket.
func (o *Orchestrator) bucket(name string, run func(), degrade func(error)) func() error {
	return func() error {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Bucket panicked", "bucket", name, "panic", r)
				degrade(fmt.Errorf("%w: %v", util.ErrPanic, r))
			}
		}()
		run()
		return nil
	}
}

func (o *Orchestrator) runAutomation(ctx context.Context, sess Session, tasks []task.Task) string {
	if o.deps.Automator == nil {
		return msgAutoFailed
	}

	o.status(ctx, sess, "Working on automation...")

	report, err := util.Bounded(ctx, o.timeouts.Automation, func(ctx context.Context) (automation.Report, error) {
		return o.deps.Automator.Run(ctx, tasks), nil
	})
	if err != nil {
		log.Warn("Automation bucket failed", "err", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return msgAutoTimeout
		}
		return msgAutoFailed
	}

	return report.Summary()
}

func (o *Orchestrator) runGeneral(ctx context.Context, sess Session, tasks []task.Task) []string {
	o.status(ctx, sess, "Thinking...")

	return each(ctx, tasks, o.timeouts.General, func(ctx context.Context, _ int, t task.Task) (string, error) {
		return o.deps.Answerer.Handle(ctx, sess, t)
	}, degradeText)
}

func (o *Orchestrator) runRealtime(ctx context.Context, sess Session, tasks []task.Task) []string {
	o.status(ctx, sess, "Searching...")

	return each(ctx, tasks, o.timeouts.Realtime, func(ctx context.Context, _ int, t task.Task) (string, error) {
		return o.deps.Answerer.Realtime(ctx, sess, t.Payload)
	}, degradeText)
}

func (o *Orchestrator) runImages(ctx context.Context, sess Session, tasks []task.Task) []string {
	if o.deps.Images == nil {
		return nil
	}

	o.status(ctx, sess, "Generating images...")

	return each(ctx, tasks, o.timeouts.Images, func(ctx context.Context, i int, t task.Task) (string, error) {
		return o.deps.Images.Generate(ctx, t.Payload, i+1)
	}, degradeImage)
}

// finish renders the reply and hands it to speech.
func (o *Orchestrator) finish(ctx context.Context, sess Session, r Reply) Reply {
	o.deps.Outbox.Emit(ctx, Event{Kind: EventText, Session: sess, Text: r.Text})
	if len(r.Images) > 0 {
		o.deps.Outbox.Emit(ctx, Event{Kind: EventImages, Session: sess, Images: r.Images})
	}
	if sess.Channel != ChannelWeb {
		o.status(ctx, sess, "Answering...")
		o.deps.Outbox.Emit(ctx, Event{Kind: EventSpeak, Session: sess, Text: r.Text})
	}
	o.status(ctx, sess, "Available...")
	return r
}

func (o *Orchestrator) status(ctx context.Context, sess Session, text string) {
	o.deps.Outbox.Emit(ctx, Event{Kind: EventStatus, Session: sess, Text: text})
}

func (o *Orchestrator) lockUser(id string) {
	o.mu.Lock()
	l, ok := o.users[id]
	if !ok {
		l = &userLock{}
		o.users[id] = l
	}
	l.refs++
	o.mu.Unlock()

	l.Lock()
}

func (o *Orchestrator) unlockUser(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	l := o.users[id]
	l.Unlock()
	if l.refs--; l.refs == 0 {
		delete(o.users, id)
	}
}

// activeUsers reports how many users have an utterance in flight.
func (o *Orchestrator) activeUsers() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.users)
}

func bucketError(name string) string {
	return fmt.Sprintf("Something went wrong while handling the %s part of your request.", name)
}
