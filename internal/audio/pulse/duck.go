// Package pulse drives PulseAudio/PipeWire through pactl: lowering other
// streams while the assistant speaks and applying system volume actions.
package pulse

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const maxVolume = 150

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

type Stream struct {
	ID      int
	Volume  int
	AppName string
}

type fade struct {
	id       int
	from, to int
}

// Ducker fades every sink input except the assistant's own streams.
type Ducker struct {
	mu       sync.Mutex
	active   bool
	self     []string
	saved    map[int]int
	floor    int
	list     func(context.Context) ([]Stream, error)
	setLevel func(ctx context.Context, id, percent int) error
}

func NewDucker(self []string, floor int) *Ducker {
	return &Ducker{
		self:     append([]string(nil), self...),
		saved:    make(map[int]int),
		floor:    clampVolume(floor),
		list:     ListStreams,
		setLevel: SetStreamVolume,
	}
}

// Duck lowers foreign streams to volume*factor, never below the floor.
func (d *Ducker) Duck(ctx context.Context, factor float64, dur time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	streams, err := d.list(ctx)
	if err != nil {
		return err
	}

	d.saved = make(map[int]int)

	var fades []fade
	for _, s := range streams {
		if d.isSelf(s) {
			continue
		}
		to := int(math.Round(float64(s.Volume) * factor))
		if to < d.floor {
			to = d.floor
		}
		d.saved[s.ID] = s.Volume
		fades = append(fades, fade{id: s.ID, from: s.Volume, to: clampVolume(to)})
	}

	if err := d.run(ctx, fades, dur); err != nil {
		return err
	}

	d.active = true
	return nil
}

// Restore fades ducked streams back. Streams that appeared after Duck are
// left alone.
func (d *Ducker) Restore(ctx context.Context, dur time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	streams, err := d.list(ctx)
	if err != nil {
		return err
	}

	var fades []fade
	for _, s := range streams {
		orig, ok := d.saved[s.ID]
		if !ok || d.isSelf(s) {
			continue
		}
		fades = append(fades, fade{id: s.ID, from: s.Volume, to: orig})
	}

	if err := d.run(ctx, fades, dur); err != nil {
		return err
	}

	d.saved = make(map[int]int)
	d.active = false
	return nil
}

func (d *Ducker) isSelf(s Stream) bool {
	for _, name := range d.self {
		if s.AppName == name {
			return true
		}
	}
	return false
}

func (d *Ducker) run(ctx context.Context, fades []fade, dur time.Duration) error {
	if len(fades) == 0 {
		return nil
	}

	const minStep = 10 * time.Millisecond

	steps := int(dur / minStep)
	if steps < 1 {
		steps = 1
	}
	pause := dur / time.Duration(steps)

	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frac := float64(i) / float64(steps)
		for _, f := range fades {
			v := int(math.Round(float64(f.from) + float64(f.to-f.from)*frac))
			if err := d.setLevel(ctx, f.id, v); err != nil {
				return fmt.Errorf("set volume id=%d: %w", f.id, err)
			}
		}

		if i < steps && pause > 0 {
			time.Sleep(pause)
		}
	}

	return nil
}

func ListStreams(ctx context.Context) ([]Stream, error) {
	out, err := exec.CommandContext(ctx, "pactl", "list", "sink-inputs").Output()
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}
	return ParseSinkInputs(string(out)), nil
}

// ParseSinkInputs reads the output of "pactl list sink-inputs".
func ParseSinkInputs(text string) []Stream {
	blocks := strings.Split(text, "Sink Input #")
	if len(blocks) <= 1 {
		return nil
	}

	var res []Stream
	for _, block := range blocks[1:] {
		head, body, ok := strings.Cut(block, "\n")
		if !ok {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(head))
		if err != nil {
			continue
		}

		s := Stream{ID: id}
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)

			if strings.HasPrefix(line, "Volume:") && s.Volume == 0 {
				if m := percentRe.FindStringSubmatch(line); len(m) >= 2 {
					s.Volume, _ = strconv.Atoi(m[1])
				}
			}

			if strings.HasPrefix(line, "application.name =") && s.AppName == "" {
				_, v, _ := strings.Cut(line, "=")
				s.AppName = strings.Trim(strings.TrimSpace(v), `"`)
			}
		}

		if s.Volume == 0 && s.AppName == "" {
			continue
		}
		res = append(res, s)
	}

	return res
}

func SetStreamVolume(ctx context.Context, id, percent int) error {
	arg := fmt.Sprintf("%d%%", clampVolume(percent))
	return exec.CommandContext(ctx, "pactl", "set-sink-input-volume", strconv.Itoa(id), arg).Run()
}

func clampVolume(v int) int {
	return max(0, min(v, maxVolume))
}
