package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"kashi/internal/assistant"
	"kashi/internal/audio"
	"kashi/internal/audio/pulse"
	"kashi/internal/automation"
	"kashi/internal/chat"
	"kashi/internal/config"
	"kashi/internal/history"
	"kashi/internal/imagegen"
	"kashi/internal/inbox"
	"kashi/internal/ipc"
	"kashi/internal/lang"
	"kashi/internal/listen"
	"kashi/internal/llm"
	"kashi/internal/memory"
	"kashi/internal/nlu"
	"kashi/internal/notify"
	"kashi/internal/proxy"
	"kashi/internal/render"
	"kashi/internal/search"
	"kashi/internal/store"
	"kashi/internal/tts"
	"kashi/internal/tts/espeak"
	"kashi/internal/vision"
	"kashi/internal/web"
	"kashi/pkg/stt"
	"kashi/pkg/vad"
)

const localUser = "local"

type options struct {
	proxy  string
	addr   string
	voice  bool
	socket string
}

type app struct {
	cfg config.Config

	db       *sql.DB
	history  *history.Store
	outbox   *assistant.Outbox
	orch     *assistant.Orchestrator
	dispatch *render.Dispatcher
	files    *render.Files
	web      *web.Server
	inbox    *inbox.Watcher
	ctl      *ipc.Server

	rec  *audio.Recorder
	stt  *stt.Transcriber
	loop *listen.Loop

	exit     chan struct{}
	exitOnce sync.Once
}

func build(ctx context.Context, cfg config.Config, opt options) (*app, error) {
	a := &app{cfg: cfg, exit: make(chan struct{})}
	if err := a.init(ctx, opt); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context, opt options) error {
	cfg := a.cfg

	httpClient, err := proxy.NewClient(opt.proxy)
	if err != nil {
		return fmt.Errorf("socks proxy %s: %w", opt.proxy, err)
	}

	var (
		openAI   *llm.OpenAI
		chatGen  llm.Generator
		decision llm.Generator
	)
	if cfg.OpenAIKey != "" {
		openAI = llm.NewOpenAI(llm.OpenAIConfig{
			APIKey:     cfg.OpenAIKey,
			Model:      cfg.ChatModel,
			ImageModel: cfg.ImageModel,
			HTTPClient: httpClient,
		})
	}
	switch cfg.Provider {
	case config.ProviderGemini:
		g, err := llm.NewGemini(ctx, llm.GeminiConfig{APIKey: cfg.GeminiKey, Model: cfg.ChatModel})
		if err != nil {
			return err
		}
		chatGen, decision = g, g.WithModel(cfg.DecisionModel)
	default:
		chatGen, decision = openAI, openAI.WithModel(cfg.DecisionModel)
	}

	log.Debug("Loaded models", "provider", cfg.Provider)

	a.db, err = store.Open(ctx, cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.history = history.New(a.db, cfg.AssistantName)
	mem := memory.New(a.db)

	if _, err := a.history.Greet(ctx, localUser, cfg.Username); err != nil {
		log.Warn("Failed to seed chat log", "err", err)
	}

	log.Debug("Loaded database", "path", cfg.DatabasePath())

	var searcher search.Searcher
	if s, err := search.New(ctx, search.Config{
		Provider:     cfg.SearchProvider,
		GoogleAPIKey: cfg.GoogleAPIKey,
		GoogleCX:     cfg.GoogleCX,
		BingAPIKey:   cfg.BingAPIKey,
	}); err != nil {
		log.Warn("Live search disabled", "err", err)
	} else {
		searcher = s
	}

	if err := a.loadWhisper(opt.voice); err != nil {
		return err
	}

	var (
		describer   llm.Describer
		transcriber vision.Transcriber
		images      assistant.ImageMaker
	)
	if openAI != nil {
		describer = openAI
		images = imagegen.New(openAI, cfg.ImagesDir())
	}
	if a.stt != nil {
		transcriber = a.stt
	}

	bot := chat.New(chat.Deps{
		Generator: chatGen,
		Searcher:  searcher,
		History:   a.history,
		Memory:    mem,
		Analyzer:  vision.New(describer, chatGen, transcriber),
	}, chat.Config{AssistantName: cfg.AssistantName})

	a.outbox = assistant.NewOutbox(0)
	a.orch = assistant.New(assistant.Deps{
		Classifier: nlu.NewClassifier(decision, nlu.DefaultAttempts),
		Answerer:   bot,
		Automator:  automation.NewRunner(automation.NewExec(), chatGen, automation.Config{DataDir: cfg.DataDir}),
		Images:     images,
		History:    a.history,
		Outbox:     a.outbox,
		OnExit:     a.requestExit,
	})

	a.files, err = render.NewFiles(cfg.GuiFilesDir, cfg.AssistantName)
	if err != nil {
		return err
	}
	hub := web.NewHub(localUser)
	speaker := tts.NewSpeaker(espeak.New(), pulse.NewDucker([]string{"espeak", "kashi"}, 10))
	a.dispatch = render.NewDispatcher(a.files, hub, render.Speech(speaker))

	if opt.addr != "" {
		a.web = web.NewServer(web.Config{
			Addr:          opt.addr,
			AssistantName: cfg.AssistantName,
			Language:      cfg.Language,
		}, a.orch, a.history, mem, hub)
	}

	a.inbox, err = inbox.New(cfg.GuiFilesDir, a.typed)
	if err != nil {
		return fmt.Errorf("inbox: %w", err)
	}

	if opt.voice {
		a.rec = audio.NewRecorder(vad.Default)
		if err := a.rec.Init(); err != nil {
			a.rec = nil
			return fmt.Errorf("init audio: %w", err)
		}
		capt := listen.NewCapturer(a.rec, a.stt)
		chime := &notify.Chime{File: cfg.BeepFile}
		a.loop = listen.NewLoop(capt, a.orch, a.outbox, listen.Config{
			Session:    a.session(assistant.ChannelVoice, cfg.Language),
			SnapWindow: 300 * time.Millisecond,
		}, listen.Options{Snap: capt, Gate: a.files, Beep: chime.Beep})

		log.Debug("Loaded recorder")
	}

	socket := opt.socket
	if socket == "" {
		socket = ipc.SocketPath
	}
	if a.ctl, err = ipc.Listen(socket, a.control); err != nil {
		log.Warn("Control socket disabled", "path", socket, "err", err)
	}

	return nil
}

// loadWhisper is required for voice. Without voice the model is still used
// for audio file analysis when it is on disk.
func (a *app) loadWhisper(voice bool) error {
	path := a.cfg.WhisperModel
	if !voice {
		if _, err := os.Stat(path); err != nil {
			return nil
		}
	}

	tr, err := stt.NewTranscriber(path, stt.Options{Language: "auto"})
	if err != nil {
		if voice {
			return fmt.Errorf("init whisper: %w", err)
		}
		log.Warn("Audio file analysis disabled", "err", err)
		return nil
	}
	a.stt = tr

	log.Debug("Loaded whisper", "model", filepath.Base(path))
	return nil
}

func (a *app) session(ch assistant.Channel, language string) assistant.Session {
	return assistant.Session{
		UserID:   localUser,
		Username: a.cfg.Username,
		Language: language,
		Channel:  ch,
	}
}

func (a *app) typed(ctx context.Context, text string) {
	sess := a.session(assistant.ChannelText, lang.Detect(text, a.cfg.Language))
	a.orch.Process(ctx, sess, text)
}

func (a *app) control(ctx context.Context, msg ipc.ControlMessage) ipc.Response {
	switch msg.Cmd {
	case ipc.CmdTrigger:
		if a.loop == nil {
			return ipc.Response{Error: "voice is disabled"}
		}
		a.loop.Trigger(ctx)
		return ipc.Response{OK: true}

	case ipc.CmdSay:
		sess := a.session(assistant.ChannelVoice, lang.Detect(msg.Text, a.cfg.Language))
		a.outbox.Emit(ctx, assistant.Event{Kind: assistant.EventText, Session: sess, Text: msg.Text})
		a.outbox.Emit(ctx, assistant.Event{Kind: assistant.EventSpeak, Session: sess, Text: msg.Text})
		return ipc.Response{OK: true}

	case ipc.CmdAsk:
		sess := a.session(assistant.ChannelText, lang.Detect(msg.Text, a.cfg.Language))
		reply := a.orch.Process(ctx, sess, msg.Text)
		return ipc.Response{OK: true, Text: reply.Text}

	case ipc.CmdStop:
		a.requestExit()
		return ipc.Response{OK: true, Text: "Stopping."}
	}

	log.Warn("Unknown command", "cmd", msg.Cmd)
	return ipc.Response{Error: "unknown command " + msg.Cmd}
}

func (a *app) requestExit() {
	a.exitOnce.Do(func() {
		log.Info("Exit requested")
		close(a.exit)
	})
}

// Run blocks until a signal, an exit utterance or a stop command.
func (a *app) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		a.dispatch.Run(context.WithoutCancel(ctx), a.outbox.Events())
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-a.exit:
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	if a.web != nil {
		g.Go(a.web.Start)
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer scancel()
			return a.web.Shutdown(sctx)
		})
	}

	if a.ctl != nil {
		g.Go(func() error { return a.ctl.Serve(gctx) })
	}

	if err := a.inbox.Start(gctx); err != nil {
		log.Warn("Typed input disabled", "err", err)
	} else {
		defer a.inbox.Stop()
	}

	if a.loop != nil {
		g.Go(func() error {
			if err := a.loop.Run(gctx); err != nil {
				return err
			}
			a.requestExit()
			return nil
		})
	}

	err := g.Wait()

	a.outbox.Close()
	<-rendered

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) Close() {
	if a.rec != nil {
		a.rec.Close()
	}
	if a.stt != nil {
		if err := a.stt.Close(); err != nil {
			log.Debug("Failed to close whisper", "err", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Debug("Failed to close database", "err", err)
		}
	}
}
