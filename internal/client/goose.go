package client

import (
	"github.com/hashicorp/go-hclog"

	"github.com/cpm-sh/cpm/internal/schema"
)

// gooseLayout stores servers as a YAML map under "extensions".
type gooseLayout struct{}

func (gooseLayout) extensions(doc map[string]any) map[string]any {
	ext, ok := doc["extensions"].(map[string]any)
	if !ok {
		ext = map[string]any{}
		doc["extensions"] = ext
	}
	return ext
}

func (l gooseLayout) entry(doc map[string]any, name string) (map[string]any, bool) {
	entry, ok := l.extensions(doc)[name].(map[string]any)
	return entry, ok
}

func (l gooseLayout) names(doc map[string]any) []string {
	ext := l.extensions(doc)
	names := make([]string, 0, len(ext))
	for name := range ext {
		names = append(names, name)
	}
	return names
}

func (l gooseLayout) put(doc map[string]any, name string, entry map[string]any) {
	l.extensions(doc)[name] = entry
}

func (l gooseLayout) remove(doc map[string]any, name string) {
	delete(l.extensions(doc), name)
}

// newGoose builds the Goose CLI manager. Goose renames "command" to "cmd"
// and "env" to "envs", and tags each extension with type and enabled flags.
func newGoose(logger hclog.Logger, pathOverride string) Manager {
	path := pathOverride
	if path == "" {
		path = homePath(".config", "goose", "config.yaml")
	}

	return &YAMLManager{
		logger: logger,
		key:    KeyGoose,
		info: Info{
			Name:        "Goose CLI",
			DownloadURL: "https://github.com/block/goose",
			ConfigFile:  path,
		},
		path:   path,
		layout: gooseLayout{},
		toFormat: func(srv schema.RuntimeServer) (map[string]any, error) {
			entry, err := ToClientFormat(srv)
			if err != nil {
				return nil, err
			}
			entry["name"] = srv.Name
			entry["enabled"] = true
			if srv.IsStdio() {
				entry["type"] = "stdio"
				entry["cmd"] = entry["command"]
				delete(entry, "command")
				if env, ok := entry["env"]; ok {
					entry["envs"] = env
					delete(entry, "env")
				}
			} else {
				entry["type"] = "sse"
			}
			return entry, nil
		},
		fromFormat: func(name string, raw map[string]any) (schema.RuntimeServer, error) {
			if cmd, ok := raw["cmd"]; ok {
				raw["command"] = cmd
				delete(raw, "cmd")
			}
			if envs, ok := raw["envs"]; ok {
				raw["env"] = envs
				delete(raw, "envs")
			}
			return FromClientFormat(name, raw)
		},
	}
}
