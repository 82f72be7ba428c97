package pulse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sinkInputs = `Sink Input #41
	Driver: protocol-native.c
	Volume: front-left: 52428 /  80% / -5.81 dB,   front-right: 52428 /  80% / -5.81 dB
	Properties:
		application.name = "Firefox"
Sink Input #42
	Volume: front-left: 65536 / 100% / 0.00 dB
	Properties:
		application.name = "kashi"
Sink Input #bad
	Volume: 10%
`

func TestParseSinkInputs(t *testing.T) {
	got := ParseSinkInputs(sinkInputs)

	require.Len(t, got, 2)
	assert.Equal(t, Stream{ID: 41, Volume: 80, AppName: "Firefox"}, got[0])
	assert.Equal(t, Stream{ID: 42, Volume: 100, AppName: "kashi"}, got[1])
}

func TestDuckSkipsOwnStreamsAndRestores(t *testing.T) {
	levels := map[int]int{}
	d := NewDucker([]string{"kashi"}, 10)
	d.list = func(context.Context) ([]Stream, error) {
		return ParseSinkInputs(sinkInputs), nil
	}
	d.setLevel = func(_ context.Context, id, percent int) error {
		levels[id] = percent
		return nil
	}

	require.NoError(t, d.Duck(context.Background(), 0.25, 0))
	assert.Equal(t, map[int]int{41: 20}, levels)

	require.NoError(t, d.Restore(context.Background(), 0))
	assert.Equal(t, 80, levels[41])
	_, touched := levels[42]
	assert.False(t, touched)
}

func TestDuckRespectsFloor(t *testing.T) {
	var last int
	d := NewDucker(nil, 30)
	d.list = func(context.Context) ([]Stream, error) {
		return []Stream{{ID: 1, Volume: 50, AppName: "mpv"}}, nil
	}
	d.setLevel = func(_ context.Context, _ int, percent int) error {
		last = percent
		return nil
	}

	require.NoError(t, d.Duck(context.Background(), 0.1, 0))
	assert.Equal(t, 30, last)
}

func TestSinkArgs(t *testing.T) {
	args, err := SinkArgs("Volume Up")
	require.NoError(t, err)
	assert.Equal(t, []string{"set-sink-volume", "@DEFAULT_SINK@", "+10%"}, args)

	args, err = SinkArgs("mute")
	require.NoError(t, err)
	assert.Equal(t, []string{"set-sink-mute", "@DEFAULT_SINK@", "1"}, args)

	_, err = SinkArgs("explode")
	assert.ErrorIs(t, err, ErrUnknownAction)
}
