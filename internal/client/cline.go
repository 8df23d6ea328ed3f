package client

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/hashicorp/go-hclog"
)

func newCline(logger hclog.Logger, pathOverride string) Manager {
	path := pathOverride
	if path == "" {
		tail := []string{
			"Code", "User", "globalStorage", "saoudrizwan.claude-dev", "settings", "cline_mcp_settings.json",
		}
		switch runtime.GOOS {
		case "darwin":
			path = homePath(append([]string{"Library", "Application Support"}, tail...)...)
		case "windows":
			path = filepath.Join(append([]string{os.Getenv("APPDATA")}, tail...)...)
		default:
			path = homePath(append([]string{".config"}, tail...)...)
		}
	}

	return &JSONManager{
		logger: logger,
		key:    KeyCline,
		info: Info{
			Name:        "Cline",
			DownloadURL: "https://marketplace.visualstudio.com/items?itemName=saoudrizwan.claude-dev",
			ConfigFile:  path,
		},
		path:       path,
		serversKey: "mcpServers",
	}
}
