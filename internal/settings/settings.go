// Package settings handles the user-level settings file (config.toml in the
// user config directory). Settings tune tool behavior and never hold server
// state; the stores in internal/config own that.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/cpm-sh/cpm/internal/files"
	"github.com/cpm-sh/cpm/internal/perms"
)

// FileName is the settings file name inside the user config directory.
const FileName = "config.toml"

// Settings holds user-tunable behavior.
type Settings struct {
	// RegistryURL overrides the default registry endpoint.
	RegistryURL string `toml:"registry_url,omitempty"`

	// CacheTTL overrides the registry cache time-to-live, as a Go duration
	// string ("1h", "30m").
	CacheTTL string `toml:"cache_ttl,omitempty"`

	// SyncClients lists the client names 'cpm sync' targets when none are
	// given on the command line.
	SyncClients []string `toml:"sync_clients,omitempty"`

	path string
}

// DefaultPath returns the settings file location in the user config directory.
func DefaultPath() (string, error) {
	dir, err := files.UserSpecificConfigDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, FileName), nil
}

// Load reads the settings file at path, or the default location when path is
// empty. A missing file yields zero-value settings, not an error.
func Load(path string) (Settings, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return Settings{}, err
		}
	}

	var s Settings
	if _, err := toml.DecodeFile(path, &s); err != nil {
		if os.IsNotExist(err) {
			return Settings{path: path}, nil
		}
		return Settings{}, fmt.Errorf("failed to decode settings file (%s): %w", path, err)
	}

	if s.CacheTTL != "" {
		if _, err := time.ParseDuration(s.CacheTTL); err != nil {
			return Settings{}, fmt.Errorf("invalid cache_ttl in %s: %w", path, err)
		}
	}
	s.path = path

	return s, nil
}

// Save writes the settings back to the file they were loaded from.
func (s Settings) Save() error {
	if s.path == "" {
		return fmt.Errorf("settings file path not present")
	}

	data, err := toml.Marshal(s)
	if err != nil {
		return err
	}
	if err := files.EnsureAtLeastRegularDir(filepath.Dir(s.path)); err != nil {
		return err
	}

	return os.WriteFile(s.path, data, perms.RegularFile)
}

// TTL returns the configured cache TTL, or ok=false when unset.
func (s Settings) TTL() (time.Duration, bool) {
	if s.CacheTTL == "" {
		return 0, false
	}

	d, err := time.ParseDuration(s.CacheTTL)
	if err != nil {
		return 0, false
	}

	return d, true
}
