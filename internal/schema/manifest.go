package schema

import (
	"encoding/json"
	"fmt"

	interrs "github.com/cpm-sh/cpm/internal/errors"
)

// Manifest is the project-level server manifest (server.json), the
// npm-package.json equivalent for a cpm project.
type Manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`

	// Servers maps simple server names to version specifiers.
	Servers map[string]string `json:"servers"`

	// DevServers maps dev-only dependencies; a server name appears in at
	// most one of Servers/DevServers.
	DevServers map[string]string `json:"devServers"`

	// Groups is the authoritative group membership list for local scope:
	// group name to ordered server names.
	Groups map[string][]string `json:"groups"`

	// Config holds auxiliary per-server env override maps.
	Config map[string]map[string]string `json:"config"`
}

// NewManifest creates an empty manifest for a project.
func NewManifest(name, version string) Manifest {
	if version == "" {
		version = "1.0.0"
	}

	return Manifest{
		Name:       name,
		Version:    version,
		Servers:    map[string]string{},
		DevServers: map[string]string{},
		Groups:     map[string][]string{},
		Config:     map[string]map[string]string{},
	}
}

// Validate checks structural invariants, in particular that no server is
// declared as both a regular and a dev dependency.
func (m *Manifest) Validate() error {
	for name := range m.Servers {
		if _, ok := m.DevServers[name]; ok {
			return fmt.Errorf("%w: server %q declared in both servers and devServers", interrs.ErrInvalidName, name)
		}
	}

	return nil
}

// HasServer reports whether the manifest declares the server, in either the
// regular or dev section.
func (m *Manifest) HasServer(name string) bool {
	if _, ok := m.Servers[name]; ok {
		return true
	}
	_, ok := m.DevServers[name]

	return ok
}

// ServerVersion returns the declared version specifier for the server, from
// whichever section declares it.
func (m *Manifest) ServerVersion(name string) (string, bool) {
	if v, ok := m.Servers[name]; ok {
		return v, true
	}
	v, ok := m.DevServers[name]

	return v, ok
}

// ServerNames returns every declared server name, regular then dev.
func (m *Manifest) ServerNames() []string {
	names := make([]string, 0, len(m.Servers)+len(m.DevServers))
	for name := range m.Servers {
		names = append(names, name)
	}
	for name := range m.DevServers {
		names = append(names, name)
	}

	return names
}

// UnmarshalJSON decodes a manifest and normalizes absent collections to empty
// ones so serialization round-trips losslessly.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	type alias Manifest
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	*m = Manifest(a)
	if m.Servers == nil {
		m.Servers = map[string]string{}
	}
	if m.DevServers == nil {
		m.DevServers = map[string]string{}
	}
	if m.Groups == nil {
		m.Groups = map[string][]string{}
	}
	if m.Config == nil {
		m.Config = map[string]map[string]string{}
	}

	return nil
}
