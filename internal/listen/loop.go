package listen

import (
	"context"
	"errors"
	log "log/slog"
	"strings"
	"sync"
	"time"

	"kashi/internal/assistant"
	"kashi/internal/lang"
)

const (
	msgListening = "I am listening."
	msgSleeping  = "Going to sleep. Say my name when you need me."
)

var (
	DefaultWakeWords  = []string{"kashi", "hey assistant", "wake up", "hello ai"}
	DefaultSleepWords = []string{"go to sleep", "stop listening", "sleep mode"}
)

type Source interface {
	Capture(ctx context.Context) (string, error)
}

type SnapDetector interface {
	Snap(ctx context.Context, window time.Duration) bool
}

type Processor interface {
	Process(ctx context.Context, sess assistant.Session, utterance string) assistant.Reply
}

// Gate reports whether the microphone is switched on.
type Gate interface {
	MicOn() bool
}

type Config struct {
	Session    assistant.Session
	WakeWords  []string
	SleepWords []string
	// SnapWindow is how long to listen for a snap between wake phrases.
	// 0 disables snap detection.
	SnapWindow time.Duration
	// Idle is the pause while the gate keeps the microphone off.
	Idle time.Duration
}

type Loop struct {
	src  Source
	proc Processor
	out  *assistant.Outbox
	snap SnapDetector
	gate Gate
	beep func() error
	cfg  Config

	// capture serializes microphone use between the loop and push-to-talk.
	capture sync.Mutex

	mu    sync.Mutex
	awake bool
	sess  assistant.Session
}

type Options struct {
	Snap SnapDetector
	Gate Gate
	Beep func() error
}

func NewLoop(src Source, proc Processor, out *assistant.Outbox, cfg Config, opt Options) *Loop {
	if len(cfg.WakeWords) == 0 {
		cfg.WakeWords = DefaultWakeWords
	}
	if len(cfg.SleepWords) == 0 {
		cfg.SleepWords = DefaultSleepWords
	}
	if cfg.Idle <= 0 {
		cfg.Idle = 500 * time.Millisecond
	}
	if cfg.Session.Channel == "" {
		cfg.Session.Channel = assistant.ChannelVoice
	}
	return &Loop{
		src:  src,
		proc: proc,
		out:  out,
		snap: opt.Snap,
		gate: opt.Gate,
		beep: opt.Beep,
		cfg:  cfg,
		sess: cfg.Session,
	}
}

func (l *Loop) Awake() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.awake
}

func (l *Loop) Session() assistant.Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sess
}

// Run listens until ctx is done or an utterance asks to exit.
func (l *Loop) Run(ctx context.Context) error {
	log.Info("Voice loop started", "wake", l.cfg.WakeWords)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if l.gate != nil && !l.gate.MicOn() {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(l.cfg.Idle):
			}
			continue
		}

		if l.Step(ctx) {
			return nil
		}
	}
}

// Step performs one capture and reacts to it. It reports whether the
// assistant was asked to exit.
func (l *Loop) Step(ctx context.Context) bool {
	if !l.Awake() && l.snap != nil && l.cfg.SnapWindow > 0 {
		if l.snap.Snap(ctx, l.cfg.SnapWindow) {
			log.Info("Snap detected")
			l.wake(ctx)
			return false
		}
	}

	text, err := l.listen(ctx)
	switch {
	case errors.Is(err, ErrTimeout):
		return false
	case err != nil:
		if ctx.Err() == nil {
			log.Warn("Failed to capture", "err", err)
		}
		return false
	}

	log.Debug("Heard", "text", text, "awake", l.Awake())

	if !l.Awake() {
		if match(text, l.cfg.WakeWords) {
			l.wake(ctx)
		}
		return false
	}

	return l.Command(ctx, text)
}

// Command handles text spoken while awake.
func (l *Loop) Command(ctx context.Context, text string) bool {
	if match(text, l.cfg.SleepWords) {
		l.setAwake(false)
		l.say(ctx, msgSleeping)
		return false
	}

	if lg, ok := lang.ChangeRequest(text); ok {
		l.mu.Lock()
		l.sess.Language = lg.Code
		l.mu.Unlock()
		log.Info("Language changed", "lang", lg.Code)
		l.say(ctx, "Okay, I will speak "+lg.Name+" now.")
		return false
	}

	reply := l.proc.Process(ctx, l.Session(), text)
	return reply.Exit
}

// Trigger is push-to-talk: one command is captured and processed whatever
// the wake state.
func (l *Loop) Trigger(ctx context.Context) bool {
	l.signal()

	text, err := l.listen(ctx)
	if err != nil {
		if !errors.Is(err, ErrTimeout) {
			log.Warn("Failed to capture", "err", err)
		}
		return false
	}
	return l.proc.Process(ctx, l.Session(), text).Exit
}

func (l *Loop) listen(ctx context.Context) (string, error) {
	l.capture.Lock()
	defer l.capture.Unlock()
	return l.src.Capture(ctx)
}

func (l *Loop) wake(ctx context.Context) {
	l.setAwake(true)
	l.say(ctx, msgListening)
	l.signal()
}

func (l *Loop) signal() {
	if l.beep == nil {
		return
	}
	if err := l.beep(); err != nil {
		log.Debug("Failed to beep", "err", err)
	}
}

func (l *Loop) setAwake(v bool) {
	l.mu.Lock()
	l.awake = v
	l.mu.Unlock()
}

func (l *Loop) say(ctx context.Context, text string) {
	sess := l.Session()
	l.out.Emit(ctx, assistant.Event{Kind: assistant.EventText, Session: sess, Text: text})
	l.out.Emit(ctx, assistant.Event{Kind: assistant.EventSpeak, Session: sess, Text: text})
}

func match(text string, phrases []string) bool {
	low := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(low, p) {
			return true
		}
	}
	return false
}
