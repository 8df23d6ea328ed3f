package client

import (
	"github.com/hashicorp/go-hclog"
)

func newCursor(logger hclog.Logger, pathOverride string) Manager {
	path := pathOverride
	if path == "" {
		path = homePath(".cursor", "mcp.json")
	}

	return &JSONManager{
		logger: logger,
		key:    KeyCursor,
		info: Info{
			Name:        "Cursor",
			DownloadURL: "https://cursor.sh/download",
			ConfigFile:  path,
		},
		path:       path,
		serversKey: "mcpServers",
	}
}
