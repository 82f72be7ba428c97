// Package automation carries out the side effect tasks: opening and closing
// applications, media playback, web searches, volume control and content
// writing.
package automation

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"kashi/internal/audio/pulse"
	"kashi/internal/llm"
	"kashi/pkg/task"
	"kashi/pkg/util"
)

const DefaultItemTimeout = 30 * time.Second

var (
	ErrUnsupported = errors.New("unsupported automation task")
	ErrEmptyTarget = errors.New("empty target")
	ErrUnknownApp  = errors.New("unknown application")
	ErrProtected   = errors.New("refusing to close the assistant")
)

const contentSystemPrompt = `You are a content writer. Write the requested letter, code, application, essay or
other text in full. Output only the content itself.`

type Config struct {
	DataDir     string
	ItemTimeout time.Duration
	Apps        Apps
	// Protected process names are never closed. The running executable is
	// always protected.
	Protected []string
}

// Runner executes automation tasks concurrently, one goroutine per task.
type Runner struct {
	launcher Launcher
	writer   llm.Generator
	cfg      Config
}

func NewRunner(launcher Launcher, writer llm.Generator, cfg Config) *Runner {
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = DefaultItemTimeout
	}
	if cfg.Apps == nil {
		cfg.Apps = DefaultApps()
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "Data"
	}
	cfg.Protected = append(cfg.Protected, "kashi", "kashi-ctl")
	if exe, err := os.Executable(); err == nil {
		cfg.Protected = append(cfg.Protected, filepath.Base(exe))
	}
	return &Runner{launcher: launcher, writer: writer, cfg: cfg}
}

// Run executes every task and waits for all of them. A failing task never
// stops its siblings; its error is recorded in the report.
func (r *Runner) Run(ctx context.Context, tasks []task.Task) Report {
	outcomes := make([]Outcome, len(tasks))

	var g errgroup.Group
	for i, t := range tasks {
		g.Go(func() error {
			_, err := util.Bounded(ctx, r.cfg.ItemTimeout, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, r.exec(ctx, t)
			})
			if err != nil {
				log.Warn("Automation task failed", "task", t.String(), "err", err)
			} else {
				log.Info("Automation task done", "task", t.String())
			}
			outcomes[i] = Outcome{Task: t, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return Report{Outcomes: outcomes}
}

func (r *Runner) exec(ctx context.Context, t task.Task) error {
	target := strings.TrimSpace(t.Payload)
	if target == "" {
		return fmt.Errorf("%s: %w", t.Category, ErrEmptyTarget)
	}

	switch t.Category {
	case task.Open:
		return r.open(ctx, target)
	case task.Close:
		return r.close(ctx, target)
	case task.Play:
		return r.launcher.Open(ctx, YoutubeURL(target))
	case task.GoogleSearch:
		return r.launcher.Open(ctx, GoogleURL(target))
	case task.YoutubeSearch:
		return r.launcher.Open(ctx, YoutubeURL(target))
	case task.System:
		args, err := pulse.SinkArgs(target)
		if err != nil {
			return err
		}
		return r.launcher.Run(ctx, "pactl", args...)
	case task.Content:
		_, err := r.Content(ctx, target)
		return err
	}

	return fmt.Errorf("%w: %s", ErrUnsupported, t.Category)
}

func (r *Runner) open(ctx context.Context, name string) error {
	app, known := r.cfg.Apps.Lookup(name)

	if known && app.Command != "" && r.launcher.Installed(app.Command) {
		return r.launcher.Start(ctx, app.Command)
	}
	if known && app.URL != "" {
		return r.launcher.Open(ctx, app.URL)
	}

	bin := binName(name)
	if r.launcher.Installed(bin) {
		return r.launcher.Start(ctx, bin)
	}

	return r.launcher.Open(ctx, GoogleURL(name))
}

// close only stops programs from the app table or executables found on
// PATH, matched by exact process name.
func (r *Runner) close(ctx context.Context, name string) error {
	var bin string
	if app, ok := r.cfg.Apps.Lookup(name); ok && app.Command != "" {
		bin = app.Command
	} else if b := binName(name); b != "" && r.launcher.Installed(b) {
		bin = b
	}
	if bin == "" {
		return fmt.Errorf("close %q: %w", name, ErrUnknownApp)
	}

	for _, p := range r.cfg.Protected {
		if strings.EqualFold(filepath.Base(bin), p) {
			return fmt.Errorf("close %q: %w", name, ErrProtected)
		}
	}

	return r.launcher.Kill(ctx, filepath.Base(bin))
}

func binName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "-"))
}

// Content writes a text about topic into the data directory and opens it in
// the default editor. It returns the file path.
func (r *Runner) Content(ctx context.Context, topic string) (string, error) {
	if r.writer == nil {
		return "", fmt.Errorf("content: %w", ErrUnsupported)
	}

	text, err := r.writer.Generate(ctx, contentSystemPrompt, nil, topic)
	if err != nil {
		return "", fmt.Errorf("write content: %w", err)
	}
	text = strings.ReplaceAll(text, "</s>", "")

	if err := os.MkdirAll(r.cfg.DataDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir data: %w", err)
	}

	path := filepath.Join(r.cfg.DataDir, ContentFileName(topic))
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	return path, r.launcher.Open(ctx, path)
}

// ContentFileName is the lower case topic without spaces plus ".txt".
func ContentFileName(topic string) string {
	name := strings.ToLower(strings.ReplaceAll(topic, " ", ""))
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return -1
		}
		return r
	}, name)
	return name + ".txt"
}

func GoogleURL(q string) string {
	return "https://www.google.com/search?q=" + url.QueryEscape(q)
}

func YoutubeURL(q string) string {
	return "https://www.youtube.com/results?search_query=" + url.QueryEscape(q)
}
