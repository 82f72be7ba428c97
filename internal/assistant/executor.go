package assistant

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"kashi/pkg/task"
	"kashi/pkg/util"
)

type Timeouts struct {
	Automation time.Duration
	General    time.Duration
	Realtime   time.Duration
	Images     time.Duration
}

var DefaultTimeouts = Timeouts{
	Automation: 60 * time.Second,
	General:    45 * time.Second,
	Realtime:   60 * time.Second,
	Images:     90 * time.Second,
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Automation <= 0 {
		t.Automation = DefaultTimeouts.Automation
	}
	if t.General <= 0 {
		t.General = DefaultTimeouts.General
	}
	if t.Realtime <= 0 {
		t.Realtime = DefaultTimeouts.Realtime
	}
	if t.Images <= 0 {
		t.Images = DefaultTimeouts.Images
	}
	return t
}

// each runs fn for every item concurrently and stores results by position.
// Failures are turned into values by degrade and never affect siblings.
func each[T any](
	ctx context.Context,
	items []task.Task,
	timeout time.Duration,
	fn func(ctx context.Context, i int, t task.Task) (T, error),
	degrade func(task.Task, error) T,
) []T {
	out := make([]T, len(items))

	var g errgroup.Group
	for i, it := range items {
		g.Go(func() error {
			v, err := util.Bounded(ctx, timeout, func(ctx context.Context) (T, error) {
				return fn(ctx, i, it)
			})
			if err != nil {
				log.Warn("Task failed", "task", it.String(), "err", err)
				v = degrade(it, err)
			}
			out[i] = v
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// degradeText is the per item answer substituted for a failed general or
// realtime query.
func degradeText(t task.Task, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("'%s' timed out.", t.Payload)
	}
	return fmt.Sprintf("Sorry, I couldn't answer '%s'.", t.Payload)
}

func degradeImage(task.Task, error) string {
	return ""
}
