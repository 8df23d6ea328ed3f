package client

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hashicorp/go-hclog"

	interrs "github.com/cpm-sh/cpm/internal/errors"
	"github.com/cpm-sh/cpm/internal/schema"
)

// newClaudeDesktop builds the Claude Desktop manager. Claude Desktop only
// runs stdio servers; remote servers are rejected so callers can report the
// failure instead of silently dropping the entry.
func newClaudeDesktop(logger hclog.Logger, pathOverride string) Manager {
	path := pathOverride
	if path == "" {
		switch runtime.GOOS {
		case "darwin":
			path = homePath("Library", "Application Support", "Claude", "claude_desktop_config.json")
		case "windows":
			path = filepath.Join(os.Getenv("APPDATA"), "Claude", "claude_desktop_config.json")
		default:
			path = homePath(".config", "Claude", "claude_desktop_config.json")
		}
	}

	return &JSONManager{
		logger: logger,
		key:    KeyClaudeDesktop,
		info: Info{
			Name:        "Claude Desktop",
			DownloadURL: "https://claude.ai/download",
			ConfigFile:  path,
		},
		path:       path,
		serversKey: "mcpServers",
		toFormat: func(srv schema.RuntimeServer) (map[string]any, error) {
			if srv.IsRemote() {
				return nil, fmt.Errorf(
					"%w: Claude Desktop cannot run remote server %q", interrs.ErrUnsupportedServer, srv.Name,
				)
			}
			return ToClientFormat(srv)
		},
	}
}
