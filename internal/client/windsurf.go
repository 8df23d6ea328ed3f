package client

import (
	"github.com/hashicorp/go-hclog"

	"github.com/cpm-sh/cpm/internal/schema"
)

// newWindsurf builds the Windsurf manager. Windsurf names the remote
// endpoint field "serverUrl" rather than "url".
func newWindsurf(logger hclog.Logger, pathOverride string) Manager {
	path := pathOverride
	if path == "" {
		path = homePath(".codeium", "windsurf", "mcp_config.json")
	}

	return &JSONManager{
		logger: logger,
		key:    KeyWindsurf,
		info: Info{
			Name:        "Windsurf",
			DownloadURL: "https://codeium.com/windsurf/download",
			ConfigFile:  path,
		},
		path:       path,
		serversKey: "mcpServers",
		toFormat: func(srv schema.RuntimeServer) (map[string]any, error) {
			entry, err := ToClientFormat(srv)
			if err != nil {
				return nil, err
			}
			if url, ok := entry["url"]; ok {
				entry["serverUrl"] = url
				delete(entry, "url")
			}
			return entry, nil
		},
		fromFormat: func(name string, raw map[string]any) (schema.RuntimeServer, error) {
			if url, ok := raw["serverUrl"]; ok {
				raw["url"] = url
				delete(raw, "serverUrl")
			}
			return FromClientFormat(name, raw)
		},
	}
}
