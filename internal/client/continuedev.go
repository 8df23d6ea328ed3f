package client

import (
	"github.com/hashicorp/go-hclog"
)

// continueLayout stores servers as a YAML list under "mcpServers", each
// entry carrying its own "name" field.
type continueLayout struct{}

func (continueLayout) list(doc map[string]any) []any {
	entries, _ := doc["mcpServers"].([]any)
	return entries
}

func (l continueLayout) entry(doc map[string]any, name string) (map[string]any, bool) {
	for _, raw := range l.list(doc) {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if entry["name"] == name {
			return entry, true
		}
	}
	return nil, false
}

func (l continueLayout) names(doc map[string]any) []string {
	names := make([]string, 0)
	for _, raw := range l.list(doc) {
		if entry, ok := raw.(map[string]any); ok {
			if name, ok := entry["name"].(string); ok && name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

func (l continueLayout) put(doc map[string]any, name string, entry map[string]any) {
	entry["name"] = name

	entries := l.list(doc)
	for i, raw := range entries {
		if existing, ok := raw.(map[string]any); ok && existing["name"] == name {
			entries[i] = entry
			doc["mcpServers"] = entries
			return
		}
	}
	doc["mcpServers"] = append(entries, entry)
}

func (l continueLayout) remove(doc map[string]any, name string) {
	entries := l.list(doc)
	kept := make([]any, 0, len(entries))
	for _, raw := range entries {
		if entry, ok := raw.(map[string]any); ok && entry["name"] == name {
			continue
		}
		kept = append(kept, raw)
	}
	doc["mcpServers"] = kept
}

func newContinue(logger hclog.Logger, pathOverride string) Manager {
	path := pathOverride
	if path == "" {
		path = homePath(".continue", "config.yaml")
	}

	return &YAMLManager{
		logger: logger,
		key:    KeyContinue,
		info: Info{
			Name:        "Continue",
			DownloadURL: "https://marketplace.visualstudio.com/items?itemName=Continue.continue",
			ConfigFile:  path,
		},
		path:   path,
		layout: continueLayout{},
	}
}
