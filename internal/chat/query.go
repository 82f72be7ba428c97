package chat

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var questionWords = []string{
	"how", "what", "who", "where", "when", "why", "which", "whose", "whom",
	"can you", "what's", "where's", "how's",
}

// Punctuate lower cases a transcribed query and ends it with "?" when it
// reads like a question, "." otherwise.
func Punctuate(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return ""
	}

	mark := "."
	for _, w := range questionWords {
		if strings.Contains(q, w+" ") {
			mark = "?"
			break
		}
	}

	switch q[len(q)-1] {
	case '.', '?', '!':
		q = q[:len(q)-1]
	}
	q += mark

	r, n := utf8.DecodeRuneInString(q)
	return string(unicode.ToUpper(r)) + q[n:]
}

// Clean drops blank lines and stray end of sequence markers from a model
// answer.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "</s>", "")
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
