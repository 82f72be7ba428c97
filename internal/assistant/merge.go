package assistant

import (
	"fmt"
	"strings"
)

const (
	emptyFallback = "Done."
)

// Merge builds the final reply. Realtime answers come first, then general
// answers. The automation summary is only used when both are empty. A note
// with the number of generated images always closes the reply.
func Merge(realtime, general []string, automation string, images []string) string {
	var parts []string

	for _, s := range realtime {
		if n := Normalize(s); n != "" {
			parts = append(parts, n)
		}
	}
	for _, s := range general {
		if n := Normalize(s); n != "" {
			parts = append(parts, n)
		}
	}

	if len(parts) == 0 {
		if n := Normalize(automation); n != "" {
			parts = append(parts, n)
		} else {
			parts = append(parts, emptyFallback)
		}
	}

	if n := countNonEmpty(images); n > 0 {
		parts = append(parts, fmt.Sprintf("Generated %d image(s).", n))
	}

	return strings.Join(parts, "\n\n")
}

// Normalize drops blank lines and trims the rest.
func Normalize(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func countNonEmpty(ss []string) int {
	n := 0
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	return n
}
