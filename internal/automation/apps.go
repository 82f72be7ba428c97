package automation

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed apps.yaml
var defaultApps []byte

type App struct {
	Command string `yaml:"command"`
	URL     string `yaml:"url"`
}

type Apps map[string]App

// ParseApps reads an application table. Keys are matched case-insensitively.
func ParseApps(data []byte) (Apps, error) {
	var doc struct {
		Apps map[string]App `yaml:"apps"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse apps: %w", err)
	}

	out := make(Apps, len(doc.Apps))
	for name, app := range doc.Apps {
		out[strings.ToLower(name)] = app
	}
	return out, nil
}

func DefaultApps() Apps {
	apps, err := ParseApps(defaultApps)
	if err != nil {
		panic(err)
	}
	return apps
}

func (a Apps) Lookup(name string) (App, bool) {
	app, ok := a[strings.ToLower(strings.TrimSpace(name))]
	return app, ok
}
