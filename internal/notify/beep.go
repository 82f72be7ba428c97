// Package notify plays the wake chime and raises desktop notifications.
package notify

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

const sampleRate = beep.SampleRate(44100)

// Chime plays a sound file when one is configured and a short tone
// otherwise.
type Chime struct {
	File string

	once    sync.Once
	initErr error
	mu      sync.Mutex
}

func (c *Chime) init(rate beep.SampleRate) error {
	c.once.Do(func() {
		c.initErr = speaker.Init(rate, rate.N(time.Second/10))
	})
	return c.initErr
}

// Beep blocks until the sound has played.
func (c *Chime) Beep() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.File != "" {
		if _, err := os.Stat(c.File); err == nil {
			return c.playFile(c.File)
		}
	}

	if err := c.init(sampleRate); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	play(Tone(sampleRate, 880, 150*time.Millisecond))
	return nil
}

func (c *Chime) playFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode %s: %w", path, err)
	}
	defer streamer.Close()

	if err := c.init(sampleRate); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}

	if format.SampleRate != sampleRate {
		play(beep.Resample(4, format.SampleRate, sampleRate, streamer))
	} else {
		play(streamer)
	}
	return nil
}

func play(s beep.Streamer) {
	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() { close(done) })))
	<-done
}

// Tone is a sine wave at freq Hz lasting d.
func Tone(rate beep.SampleRate, freq float64, d time.Duration) beep.Streamer {
	total := rate.N(d)
	pos := 0
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= total {
			return 0, false
		}
		n := min(len(samples), total-pos)
		for i := range n {
			v := 0.3 * math.Sin(2*math.Pi*freq*float64(pos+i)/float64(rate))
			samples[i] = [2]float64{v, v}
		}
		pos += n
		return n, true
	})
}

// Desktop raises a notification through notify-send.
func Desktop(ctx context.Context, title, body string) error {
	if _, err := exec.LookPath("notify-send"); err != nil {
		return err
	}
	return exec.CommandContext(ctx, "notify-send", "-a", title, title, body).Run()
}
