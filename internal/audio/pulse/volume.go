package pulse

import (
	"errors"
	"fmt"
	"strings"
)

const (
	defaultSink = "@DEFAULT_SINK@"
	volumeStep  = "10%"
)

var ErrUnknownAction = errors.New("unknown volume action")

// SinkArgs maps a system volume action ("mute", "volume up", ...) to the
// pactl arguments that apply it to the default sink.
func SinkArgs(action string) ([]string, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "mute":
		return []string{"set-sink-mute", defaultSink, "1"}, nil
	case "unmute":
		return []string{"set-sink-mute", defaultSink, "0"}, nil
	case "volume up":
		return []string{"set-sink-volume", defaultSink, "+" + volumeStep}, nil
	case "volume down":
		return []string{"set-sink-volume", defaultSink, "-" + volumeStep}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
}
