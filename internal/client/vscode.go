package client

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/hashicorp/go-hclog"

	"github.com/cpm-sh/cpm/internal/schema"
)

// newVSCode builds the VS Code manager. Servers live under the "mcp" object
// inside the user settings.json, and every entry must carry an explicit
// "type" field.
func newVSCode(logger hclog.Logger, pathOverride string) Manager {
	path := pathOverride
	if path == "" {
		switch runtime.GOOS {
		case "darwin":
			path = homePath("Library", "Application Support", "Code", "User", "settings.json")
		case "windows":
			path = filepath.Join(os.Getenv("APPDATA"), "Code", "User", "settings.json")
		default:
			path = homePath(".config", "Code", "User", "settings.json")
		}
	}

	return &JSONManager{
		logger: logger,
		key:    KeyVSCode,
		info: Info{
			Name:        "VS Code",
			DownloadURL: "https://code.visualstudio.com/",
			ConfigFile:  path,
		},
		path:       path,
		serversKey: "servers",
		nestedKey:  "mcp",
		toFormat: func(srv schema.RuntimeServer) (map[string]any, error) {
			entry, err := ToClientFormat(srv)
			if err != nil {
				return nil, err
			}
			entry["type"] = srv.InstallMethod
			return entry, nil
		},
	}
}
