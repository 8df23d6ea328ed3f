package client

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/hashicorp/go-hclog"
	"github.com/tailscale/hujson"

	interrs "github.com/cpm-sh/cpm/internal/errors"
	"github.com/cpm-sh/cpm/internal/files"
	"github.com/cpm-sh/cpm/internal/perms"
	"github.com/cpm-sh/cpm/internal/schema"
)

// JSONManager implements Manager for clients whose servers live in a keyed
// object inside a JSON config file. Loads tolerate comments and trailing
// commas (several editors write JSONC); a file that still fails to parse is
// renamed to a .bak sibling and treated as empty. Writes preserve every key
// the manager does not own.
type JSONManager struct {
	logger hclog.Logger

	key  string
	info Info
	path string

	// serversKey is the top-level key holding the server object.
	serversKey string

	// nestedKey, when set, nests serversKey one level down (VS Code keeps
	// servers under settings.json's "mcp" object).
	nestedKey string

	// toFormat and fromFormat override the generic entry mapping.
	toFormat   func(srv schema.RuntimeServer) (map[string]any, error)
	fromFormat func(name string, raw map[string]any) (schema.RuntimeServer, error)
}

var _ Manager = (*JSONManager)(nil)

func (m *JSONManager) Key() string {
	return m.key
}

func (m *JSONManager) Info() Info {
	return m.info
}

func (m *JSONManager) Installed() bool {
	return dirExists(m.path)
}

// Servers returns every entry, skipping ones the mapping cannot represent.
func (m *JSONManager) Servers() (map[string]schema.RuntimeServer, error) {
	doc := m.load()

	out := map[string]schema.RuntimeServer{}
	for name, raw := range m.serversIn(doc) {
		entry, ok := raw.(map[string]any)
		if !ok {
			m.logger.Warn("Skipping malformed client entry", "client", m.key, "server", name)
			continue
		}
		srv, err := m.decode(name, entry)
		if err != nil {
			m.logger.Warn("Skipping unreadable client entry", "client", m.key, "server", name, "error", err)
			continue
		}
		out[name] = srv
	}

	return out, nil
}

func (m *JSONManager) Server(name string) (schema.RuntimeServer, error) {
	doc := m.load()

	raw, ok := m.serversIn(doc)[name]
	if !ok {
		return schema.RuntimeServer{}, fmt.Errorf("%w: %s", interrs.ErrServerNotFound, name)
	}
	entry, ok := raw.(map[string]any)
	if !ok {
		return schema.RuntimeServer{}, fmt.Errorf("%w: malformed entry %q", interrs.ErrUnsupportedServer, name)
	}

	return m.decode(name, entry)
}

func (m *JSONManager) AddServer(srv schema.RuntimeServer) error {
	entry, err := m.encode(srv)
	if err != nil {
		return err
	}

	doc := m.load()
	m.serversIn(doc)[srv.Name] = entry

	return m.save(doc)
}

func (m *JSONManager) RemoveServer(name string) error {
	doc := m.load()

	servers := m.serversIn(doc)
	if _, ok := servers[name]; !ok {
		return fmt.Errorf("%w: %s", interrs.ErrServerNotFound, name)
	}
	delete(servers, name)

	return m.save(doc)
}

func (m *JSONManager) ListServers() ([]string, error) {
	doc := m.load()

	servers := m.serversIn(doc)
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

func (m *JSONManager) encode(srv schema.RuntimeServer) (map[string]any, error) {
	if m.toFormat != nil {
		return m.toFormat(srv)
	}
	return ToClientFormat(srv)
}

func (m *JSONManager) decode(name string, raw map[string]any) (schema.RuntimeServer, error) {
	if m.fromFormat != nil {
		return m.fromFormat(name, raw)
	}
	return FromClientFormat(name, raw)
}

// load reads the whole config document. Missing files yield an empty
// document; corrupt files are backed up to .bak and likewise yield empty.
func (m *JSONManager) load() map[string]any {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("Failed to read client config", "client", m.key, "path", m.path, "error", err)
		}
		return map[string]any{}
	}

	std, err := hujson.Standardize(data)
	if err == nil {
		var doc map[string]any
		if err := json.Unmarshal(std, &doc); err == nil {
			return doc
		}
	}

	m.logger.Error("Client config is corrupt, backing up", "client", m.key, "path", m.path)
	if backup, berr := files.BackupCorrupt(m.path); berr == nil {
		m.logger.Info("Backed up corrupt client config", "path", backup)
	}

	return map[string]any{}
}

func (m *JSONManager) save(doc map[string]any) error {
	return files.WriteJSONAtomic(m.path, doc, perms.RegularFile)
}

// serversIn returns the mutable server object inside the document,
// creating intermediate objects as needed.
func (m *JSONManager) serversIn(doc map[string]any) map[string]any {
	container := doc
	if m.nestedKey != "" {
		nested, ok := doc[m.nestedKey].(map[string]any)
		if !ok {
			nested = map[string]any{}
			doc[m.nestedKey] = nested
		}
		container = nested
	}

	servers, ok := container[m.serversKey].(map[string]any)
	if !ok {
		servers = map[string]any{}
		container[m.serversKey] = servers
	}

	return servers
}
