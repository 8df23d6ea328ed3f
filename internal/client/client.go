// Package client adapts runtime servers to the native config formats of
// supported MCP clients. Each client declares its config location, storage
// family (JSON keyed object or YAML document), and field mapping; nothing is
// discovered dynamically.
package client

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	interrs "github.com/cpm-sh/cpm/internal/errors"
	"github.com/cpm-sh/cpm/internal/schema"
)

// Manager is the per-client surface for reading and writing MCP server
// entries in that client's own config file. Clients that cannot represent a
// server kind return ErrUnsupportedServer from AddServer.
type Manager interface {
	// Key is the stable identifier used on the command line.
	Key() string

	// Info describes the client for display.
	Info() Info

	// Installed reports whether the client's config directory exists.
	Installed() bool

	// Servers returns every entry in the client config, normalized.
	Servers() (map[string]schema.RuntimeServer, error)

	// Server returns one entry, or ErrServerNotFound.
	Server(name string) (schema.RuntimeServer, error)

	// AddServer inserts or replaces an entry.
	AddServer(srv schema.RuntimeServer) error

	// RemoveServer deletes an entry, or ErrServerNotFound when absent.
	RemoveServer(name string) error

	// ListServers returns the entry names.
	ListServers() ([]string, error)
}

// Info is display metadata for a client.
type Info struct {
	Name        string
	DownloadURL string
	ConfigFile  string
}

// constructor builds a manager, with pathOverride replacing the default
// config location when non-empty.
type constructor func(logger hclog.Logger, pathOverride string) Manager

// constructors is the static table of supported clients.
var constructors = map[string]constructor{
	KeyClaudeDesktop: newClaudeDesktop,
	KeyCursor:        newCursor,
	KeyWindsurf:      newWindsurf,
	KeyVSCode:        newVSCode,
	KeyCline:         newCline,
	KeyContinue:      newContinue,
	KeyGoose:         newGoose,
}

// Supported client keys.
const (
	KeyClaudeDesktop = "claude-desktop"
	KeyCursor        = "cursor"
	KeyWindsurf      = "windsurf"
	KeyVSCode        = "vscode"
	KeyCline         = "cline"
	KeyContinue      = "continue"
	KeyGoose         = "goose"
)

// Names returns the supported client keys in a stable order.
func Names() []string {
	return []string{
		KeyClaudeDesktop,
		KeyCursor,
		KeyWindsurf,
		KeyVSCode,
		KeyCline,
		KeyContinue,
		KeyGoose,
	}
}

// New returns the manager for a client key, or ErrClientNotFound.
func New(logger hclog.Logger, key, pathOverride string) (Manager, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	build, ok := constructors[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interrs.ErrClientNotFound, key)
	}

	return build(logger.Named("client"), pathOverride), nil
}

// All returns managers for every supported client.
func All(logger hclog.Logger) ([]Manager, error) {
	managers := make([]Manager, 0, len(constructors))
	for _, key := range Names() {
		m, err := New(logger, key, "")
		if err != nil {
			return nil, err
		}
		managers = append(managers, m)
	}

	return managers, nil
}

// Detect reports the install status of every supported client.
func Detect(logger hclog.Logger) (map[string]bool, error) {
	managers, err := All(logger)
	if err != nil {
		return nil, err
	}

	installed := make(map[string]bool, len(managers))
	for _, m := range managers {
		installed[m.Key()] = m.Installed()
	}

	return installed, nil
}

// homePath joins path elements onto the user home directory.
func homePath(elem ...string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return filepath.Join(append([]string{home}, elem...)...)
}

// dirExists reports whether the parent directory of a config file exists,
// the install heuristic shared by all clients.
func dirExists(path string) bool {
	info, err := os.Stat(filepath.Dir(path))
	return err == nil && info.IsDir()
}
