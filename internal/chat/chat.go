// Package chat answers general and realtime questions and handles the
// memory and analysis tasks that travel with them.
package chat

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"kashi/internal/assistant"
	"kashi/internal/llm"
	"kashi/internal/search"
	"kashi/pkg/task"
)

const historyTurns = 10

type HistoryLoader interface {
	Load(ctx context.Context, userID string) ([]llm.Turn, error)
}

type Memory interface {
	Remember(ctx context.Context, userID, fact string) (bool, error)
	Forget(ctx context.Context, userID, text string) (int, error)
	SetPreference(ctx context.Context, userID, key, value string) error
	Profile(ctx context.Context, userID, username string) (string, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, path, question string) (string, error)
}

type Config struct {
	AssistantName string
	Now           func() time.Time
}

type Bot struct {
	gen      llm.Generator
	searcher search.Searcher
	history  HistoryLoader
	memory   Memory
	analyzer Analyzer
	cfg      Config
}

type Deps struct {
	Generator llm.Generator
	Searcher  search.Searcher
	History   HistoryLoader
	Memory    Memory
	Analyzer  Analyzer
}

func New(d Deps, cfg Config) *Bot {
	if cfg.AssistantName == "" {
		cfg.AssistantName = "Kashi"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Bot{
		gen:      d.Generator,
		searcher: d.Searcher,
		history:  d.History,
		memory:   d.Memory,
		analyzer: d.Analyzer,
		cfg:      cfg,
	}
}

// Handle answers one item of the general bucket.
func (b *Bot) Handle(ctx context.Context, sess assistant.Session, t task.Task) (string, error) {
	switch t.Category {
	case task.General:
		return b.Answer(ctx, sess, t.Payload)
	case task.Remember:
		return b.remember(ctx, sess, t.Payload)
	case task.Forget:
		return b.forget(ctx, sess, t.Payload)
	case task.SetPreference:
		return b.setPreference(ctx, sess, t.Payload)
	case task.AnalyzeImage, task.AnalyzeFile:
		return b.analyze(ctx, t.Payload)
	default:
		return b.Answer(ctx, sess, t.String())
	}
}

// Answer replies to a conversational query.
func (b *Bot) Answer(ctx context.Context, sess assistant.Session, query string) (string, error) {
	return b.complete(ctx, sess, Punctuate(query), "")
}

// Realtime searches the web for query and answers from the results.
func (b *Bot) Realtime(ctx context.Context, sess assistant.Session, query string) (string, error) {
	query = Punctuate(query)

	var results []search.Result
	if b.searcher != nil {
		var err error
		results, err = b.searcher.Search(ctx, query)
		if err != nil {
			log.Warn("Web search failed", "query", query, "err", err)
		}
	}

	return b.complete(ctx, sess, query, search.Block(query, results))
}

func (b *Bot) complete(ctx context.Context, sess assistant.Session, query, extra string) (string, error) {
	system := b.systemPrompt(ctx, sess)
	if extra != "" {
		system += "\n\n" + extra
	}

	var turns []llm.Turn
	if b.history != nil {
		all, err := b.history.Load(ctx, sess.UserID)
		if err != nil {
			log.Warn("Failed to load history", "user", sess.UserID, "err", err)
		}
		if len(all) > historyTurns {
			all = all[len(all)-historyTurns:]
		}
		turns = all
	}

	answer, err := b.gen.Generate(ctx, system, turns, query)
	if err != nil {
		return "", fmt.Errorf("answer: %w", err)
	}

	return Clean(answer), nil
}

func (b *Bot) systemPrompt(ctx context.Context, sess assistant.Session) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Hello, I am %s. You are a very accurate and advanced AI chatbot named %s "+
		"which also has real-time up-to-date information from the internet.\n", sess.Username, b.cfg.AssistantName)
	sb.WriteString("*** Do not tell time until I ask, do not talk too much, just answer the question. ***\n")
	sb.WriteString("*** Reply in English only, even if the question is in another language. ***\n")
	sb.WriteString("*** Do not provide notes in the output and never mention your training data. ***\n")

	if b.memory != nil {
		profile, err := b.memory.Profile(ctx, sess.UserID, sess.Username)
		if err != nil {
			log.Warn("Failed to load profile", "user", sess.UserID, "err", err)
		} else {
			sb.WriteString("\n" + profile + "\n")
		}
	}

	sb.WriteString("\n" + Clock(b.cfg.Now()))

	return sb.String()
}

// Clock describes the current moment for the answer model.
func Clock(now time.Time) string {
	return fmt.Sprintf("Please use this real-time information if needed,\n"+
		"Day: %s\nDate: %s\nMonth: %s\nYear: %s\nTime: %s hours : %s minutes : %s seconds.\n",
		now.Format("Monday"), now.Format("02"), now.Format("January"), now.Format("2006"),
		now.Format("15"), now.Format("04"), now.Format("05"))
}
