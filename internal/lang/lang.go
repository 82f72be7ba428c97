// Package lang lists the languages the assistant can speak and detects the
// language of typed input.
package lang

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

const Default = "en"

type Language struct {
	Code string
	Name string
}

var supported = []Language{
	{"en", "english"},
	{"hi", "hindi"},
	{"gu", "gujarati"},
	{"fr", "french"},
	{"es", "spanish"},
	{"ta", "tamil"},
	{"te", "telugu"},
	{"bn", "bengali"},
	{"ml", "malayalam"},
	{"mr", "marathi"},
}

func Supported() []Language {
	return append([]Language(nil), supported...)
}

func ByCode(code string) (Language, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, l := range supported {
		if l.Code == code {
			return l, true
		}
	}
	return Language{}, false
}

// ChangeRequest recognizes "speak in <language>" and
// "change language to <language>" anywhere in a command.
func ChangeRequest(command string) (Language, bool) {
	low := strings.ToLower(command)
	for _, l := range supported {
		if strings.Contains(low, "speak in "+l.Name) || strings.Contains(low, "change language to "+l.Name) {
			return l, true
		}
	}
	return Language{}, false
}

// Detect guesses the language code of text. Unsupported or unreliable
// guesses return fallback.
func Detect(text, fallback string) string {
	if strings.TrimSpace(text) == "" {
		return fallback
	}

	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return fallback
	}

	if l, ok := ByCode(info.Lang.Iso6391()); ok {
		return l.Code
	}
	return fallback
}
