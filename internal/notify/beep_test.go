package notify

import (
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/stretchr/testify/assert"
)

func TestToneLength(t *testing.T) {
	rate := beep.SampleRate(1000)
	s := Tone(rate, 100, 50*time.Millisecond)

	buf := make([][2]float64, 32)
	total := 0
	for {
		n, ok := s.Stream(buf)
		total += n
		if !ok {
			break
		}
	}

	assert.Equal(t, 50, total)
}

func TestToneIsBounded(t *testing.T) {
	buf := make([][2]float64, 64)
	n, ok := Tone(beep.SampleRate(8000), 440, time.Second).Stream(buf)

	assert.True(t, ok)
	assert.Equal(t, 64, n)
	for _, s := range buf {
		assert.LessOrEqual(t, s[0], 0.3)
		assert.GreaterOrEqual(t, s[0], -0.3)
		assert.Equal(t, s[0], s[1])
	}
}
