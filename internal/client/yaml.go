package client

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v3"

	interrs "github.com/cpm-sh/cpm/internal/errors"
	"github.com/cpm-sh/cpm/internal/files"
	"github.com/cpm-sh/cpm/internal/perms"
	"github.com/cpm-sh/cpm/internal/schema"
)

// yamlLayout abstracts where server entries live inside a client's YAML
// document; the documents are structurally different per client (goose keys
// a map, continue keeps a list) and must not be clobbered outside the
// entries the manager owns.
type yamlLayout interface {
	// entry returns the named server entry, if present.
	entry(doc map[string]any, name string) (map[string]any, bool)

	// names returns every server name in the document.
	names(doc map[string]any) []string

	// put inserts or replaces the named entry.
	put(doc map[string]any, name string, entry map[string]any)

	// remove deletes the named entry.
	remove(doc map[string]any, name string)
}

// YAMLManager implements Manager for clients with YAML config files.
// Corrupt files get the same .bak treatment as the JSON family.
type YAMLManager struct {
	logger hclog.Logger

	key  string
	info Info
	path string

	layout yamlLayout

	toFormat   func(srv schema.RuntimeServer) (map[string]any, error)
	fromFormat func(name string, raw map[string]any) (schema.RuntimeServer, error)
}

var _ Manager = (*YAMLManager)(nil)

func (m *YAMLManager) Key() string {
	return m.key
}

func (m *YAMLManager) Info() Info {
	return m.info
}

func (m *YAMLManager) Installed() bool {
	return dirExists(m.path)
}

func (m *YAMLManager) Servers() (map[string]schema.RuntimeServer, error) {
	doc := m.load()

	out := map[string]schema.RuntimeServer{}
	for _, name := range m.layout.names(doc) {
		entry, ok := m.layout.entry(doc, name)
		if !ok {
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

func (m *YAMLManager) Server(name string) (schema.RuntimeServer, error) {
	doc := m.load()

	entry, ok := m.layout.entry(doc, name)
	if !ok {
		return schema.RuntimeServer{}, fmt.Errorf("%w: %s", interrs.ErrServerNotFound, name)
	}

	return m.decode(name, entry)
}

func (m *YAMLManager) AddServer(srv schema.RuntimeServer) error {
	entry, err := m.encode(srv)
	if err != nil {
		return err
	}

	doc := m.load()
	m.layout.put(doc, srv.Name, entry)

	return m.save(doc)
}

func (m *YAMLManager) RemoveServer(name string) error {
	doc := m.load()

	if _, ok := m.layout.entry(doc, name); !ok {
		return fmt.Errorf("%w: %s", interrs.ErrServerNotFound, name)
	}
	m.layout.remove(doc, name)

	return m.save(doc)
}

func (m *YAMLManager) ListServers() ([]string, error) {
	names := m.layout.names(m.load())
	sort.Strings(names)

	return names, nil
}

func (m *YAMLManager) encode(srv schema.RuntimeServer) (map[string]any, error) {
	if m.toFormat != nil {
		return m.toFormat(srv)
	}
	return ToClientFormat(srv)
}

func (m *YAMLManager) decode(name string, raw map[string]any) (schema.RuntimeServer, error) {
	if m.fromFormat != nil {
		return m.fromFormat(name, raw)
	}
	return FromClientFormat(name, raw)
}

func (m *YAMLManager) load() map[string]any {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("Failed to read client config", "client", m.key, "path", m.path, "error", err)
		}
		return map[string]any{}
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		m.logger.Error("Client config is corrupt, backing up", "client", m.key, "path", m.path)
		if backup, berr := files.BackupCorrupt(m.path); berr == nil {
			m.logger.Info("Backed up corrupt client config", "path", backup)
		}
		return map[string]any{}
	}
	if doc == nil {
		doc = map[string]any{}
	}

	return doc
}

func (m *YAMLManager) save(doc map[string]any) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal %s config: %w", m.key, err)
	}
	if err := files.EnsureAtLeastRegularDir(filepath.Dir(m.path)); err != nil {
		return err
	}

	return os.WriteFile(m.path, data, perms.RegularFile)
}
