// Package search runs live web searches through the eino search tools.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"

	duckduckgo "github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino-ext/components/tool/bingsearch"
	"github.com/cloudwego/eino-ext/components/tool/googlesearch"
)

const (
	DefaultMaxResults = 3
	defaultTimeout    = 15 * time.Second
	toolName          = "web_search"
)

var ErrProvider = errors.New("unknown search provider")

type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

type Config struct {
	Provider     string // duckduckgo, google or bing
	GoogleAPIKey string
	GoogleCX     string
	BingAPIKey   string
	MaxResults   int
	Timeout      time.Duration
}

// Tool adapts an eino search tool to Searcher.
type Tool struct {
	inner tool.InvokableTool
	max   int
}

func New(ctx context.Context, cfg Config) (*Tool, error) {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	var (
		inner tool.InvokableTool
		err   error
	)

	switch strings.ToLower(cfg.Provider) {
	case "", "duckduckgo", "ddg":
		inner, err = duckduckgo.NewTextSearchTool(ctx, &duckduckgo.Config{
			ToolName:   toolName,
			ToolDesc:   "Search the web using DuckDuckGo.",
			MaxResults: cfg.MaxResults,
			Timeout:    cfg.Timeout,
		})
	case "google":
		inner, err = googlesearch.NewTool(ctx, &googlesearch.Config{
			APIKey:         cfg.GoogleAPIKey,
			SearchEngineID: cfg.GoogleCX,
			Num:            cfg.MaxResults,
			ToolName:       toolName,
			ToolDesc:       "Search the web using Google.",
		})
	case "bing":
		inner, err = bingsearch.NewTool(ctx, &bingsearch.Config{
			APIKey:     cfg.BingAPIKey,
			MaxResults: cfg.MaxResults,
			ToolName:   toolName,
			ToolDesc:   "Search the web using Bing.",
			Timeout:    cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrProvider, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s search tool: %w", cfg.Provider, err)
	}

	return &Tool{inner: inner, max: cfg.MaxResults}, nil
}

func NewFromTool(inner tool.InvokableTool, max int) *Tool {
	if max <= 0 {
		max = DefaultMaxResults
	}
	return &Tool{inner: inner, max: max}
}

func (t *Tool) Search(ctx context.Context, query string) ([]Result, error) {
	args, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, err
	}

	raw, err := t.inner.InvokableRun(ctx, string(args))
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}

	res, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	if len(res) > t.max {
		res = res[:t.max]
	}
	return res, nil
}

// Parse reads the JSON produced by any of the search tools. The providers
// disagree on field names, so every known spelling is accepted.
func Parse(raw string) ([]Result, error) {
	var doc struct {
		Results []map[string]any `json:"results"`
		Items   []map[string]any `json:"items"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode search results: %w", err)
	}

	var out []Result
	for _, item := range append(doc.Results, doc.Items...) {
		r := Result{
			Title:       first(item, "title", "name"),
			URL:         first(item, "url", "link"),
			Description: first(item, "summary", "snippet", "description", "desc"),
		}
		if r.Title == "" && r.Description == "" {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Block renders results the way the answer model expects them.
func Block(query string, results []Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The search results for '%s' are:\n[start]\n", query)
	for _, r := range results {
		fmt.Fprintf(&b, "Title: %s\nDescription: %s\n\n", r.Title, r.Description)
	}
	b.WriteString("[end]")
	return b.String()
}

func first(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
