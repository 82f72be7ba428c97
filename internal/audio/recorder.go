// Package audio captures microphone input through PortAudio.
package audio

import (
	"context"
	"time"

	"github.com/gordonklaus/portaudio"

	"kashi/pkg/vad"
)

// SnapThreshold is the peak level a finger snap or clap has to reach.
const SnapThreshold = 0.6

type Recorder struct {
	cfg vad.Config
}

func NewRecorder(cfg vad.Config) *Recorder {
	if cfg.SampleRate == 0 {
		cfg = vad.Default
	}
	return &Recorder{cfg: cfg}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

func (r *Recorder) open(buf []float32) (*portaudio.Stream, error) {
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(r.cfg.SampleRate), len(buf), buf)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}
	return stream, nil
}

// Record captures one utterance and stops after trailing silence.
func (r *Recorder) Record(ctx context.Context) ([]float32, error) {
	buf := make([]float32, r.cfg.FrameSize)
	stream, err := r.open(buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()
	defer stream.Stop()

	seg := vad.NewSegmenter(r.cfg)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, err
		}
		switch seg.Push(buf) {
		case vad.Done:
			return seg.Samples(), nil
		case vad.TimedOut:
			return nil, vad.ErrNoSpeech
		}
	}
}

// DetectSnap listens for window and reports whether any frame peaked above
// SnapThreshold.
func (r *Recorder) DetectSnap(ctx context.Context, window time.Duration) (bool, error) {
	buf := make([]float32, r.cfg.FrameSize)
	stream, err := r.open(buf)
	if err != nil {
		return false, err
	}
	defer stream.Close()
	defer stream.Stop()

	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if err := stream.Read(); err != nil {
			return false, err
		}
		if vad.Peak(buf) > SnapThreshold {
			return true, nil
		}
	}
	return false, nil
}
