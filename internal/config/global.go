package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/go-hclog"

	interrs "github.com/cpm-sh/cpm/internal/errors"
	"github.com/cpm-sh/cpm/internal/files"
	"github.com/cpm-sh/cpm/internal/perms"
	"github.com/cpm-sh/cpm/internal/schema"
)

// globalDocument is the single JSON document the global store persists.
type globalDocument struct {
	Servers map[string]schema.RuntimeServer `json:"servers"`
	Groups  map[string]schema.Group         `json:"groups"`
}

func (d *globalDocument) UnmarshalJSON(data []byte) error {
	type alias globalDocument
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	*d = globalDocument(a)
	if d.Servers == nil {
		d.Servers = map[string]schema.RuntimeServer{}
	}
	if d.Groups == nil {
		d.Groups = map[string]schema.Group{}
	}

	return nil
}

// GlobalStore keeps all user-wide servers and groups in one JSON document.
// Every mutation loads the document, modifies it, and atomically rewrites it.
type GlobalStore struct {
	logger   hclog.Logger
	path     string
	lockPath string
}

var _ Store = (*GlobalStore)(nil)

// NewGlobalStore creates a global store rooted at the user config directory,
// or at dir when non-empty.
func NewGlobalStore(logger hclog.Logger, dir string) (*GlobalStore, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	if dir == "" {
		var err error
		dir, err = files.UserSpecificConfigDir()
		if err != nil {
			return nil, err
		}
	}
	if err := files.EnsureAtLeastRegularDir(dir); err != nil {
		return nil, err
	}

	return &GlobalStore{
		logger:   logger.Named("config.global"),
		path:     filepath.Join(dir, GlobalStoreFileName),
		lockPath: filepath.Join(dir, GlobalLockFileName),
	}, nil
}

// Path identifies the store document, for display.
func (s *GlobalStore) Path() string {
	return s.path
}

// Servers returns every installed server keyed by simple name.
func (s *GlobalStore) Servers() (map[string]schema.RuntimeServer, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	return doc.Servers, nil
}

// Server returns one installed server, or ErrServerNotFound.
func (s *GlobalStore) Server(name string) (schema.RuntimeServer, error) {
	doc, err := s.load()
	if err != nil {
		return schema.RuntimeServer{}, err
	}

	srv, ok := doc.Servers[name]
	if !ok {
		return schema.RuntimeServer{}, fmt.Errorf("%w: %s", interrs.ErrServerNotFound, name)
	}

	return srv, nil
}

// AddServer records a server, failing with ErrServerExists unless opts.Force.
func (s *GlobalStore) AddServer(srv schema.RuntimeServer, opts AddOptions) error {
	doc, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := doc.Servers[srv.Name]; ok && !opts.Force {
		return fmt.Errorf("%w: %s", interrs.ErrServerExists, srv.Name)
	}
	doc.Servers[srv.Name] = srv

	return s.save(doc)
}

// RemoveServer deletes a server and its lock entry.
func (s *GlobalStore) RemoveServer(name string) error {
	doc, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := doc.Servers[name]; !ok {
		return fmt.Errorf("%w: %s", interrs.ErrServerNotFound, name)
	}
	delete(doc.Servers, name)

	if err := s.save(doc); err != nil {
		return err
	}

	return s.unpin(name)
}

// UpdateServerEnv replaces the server's entire env map.
func (s *GlobalStore) UpdateServerEnv(name string, env map[string]string) error {
	doc, err := s.load()
	if err != nil {
		return err
	}

	srv, ok := doc.Servers[name]
	if !ok {
		return fmt.Errorf("%w: %s", interrs.ErrServerNotFound, name)
	}

	if env == nil {
		env = map[string]string{}
	}
	srv.Env = env
	doc.Servers[name] = srv

	return s.save(doc)
}

// Version reports false: version pinning only exists in local scope.
func (s *GlobalStore) Version(_ string) (string, bool) {
	return "", false
}

// Groups returns all groups, sorted by name.
func (s *GlobalStore) Groups() ([]schema.Group, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	groups := make([]schema.Group, 0, len(doc.Groups))
	for _, g := range doc.Groups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })

	return groups, nil
}

// CreateGroup creates a group, failing with ErrGroupExists if present.
func (s *GlobalStore) CreateGroup(name, description string) error {
	name = schema.StripGroupPrefix(name)

	doc, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := doc.Groups[name]; ok {
		return fmt.Errorf("%w: %s", interrs.ErrGroupExists, name)
	}
	doc.Groups[name] = schema.NewGroup(name, description)

	return s.save(doc)
}

// DeleteGroup removes a group and strips its tag from every server.
// Member servers stay installed.
func (s *GlobalStore) DeleteGroup(name string) error {
	name = schema.StripGroupPrefix(name)

	doc, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := doc.Groups[name]; !ok {
		return fmt.Errorf("%w: %s", interrs.ErrGroupNotFound, name)
	}
	delete(doc.Groups, name)

	for key, srv := range doc.Servers {
		srv.RemoveGroup(name)
		doc.Servers[key] = srv
	}

	return s.save(doc)
}

// RenameGroup renames a group, retagging every member server.
func (s *GlobalStore) RenameGroup(oldName, newName string) error {
	oldName = schema.StripGroupPrefix(oldName)
	newName = schema.StripGroupPrefix(newName)

	doc, err := s.load()
	if err != nil {
		return err
	}

	g, ok := doc.Groups[oldName]
	if !ok {
		return fmt.Errorf("%w: %s", interrs.ErrGroupNotFound, oldName)
	}
	if _, ok := doc.Groups[newName]; ok {
		return fmt.Errorf("%w: %s", interrs.ErrGroupExists, newName)
	}

	delete(doc.Groups, oldName)
	g.Name = newName
	g.Touch()
	doc.Groups[newName] = g

	for key, srv := range doc.Servers {
		if srv.HasGroup(oldName) {
			srv.RemoveGroup(oldName)
			srv.AddGroup(newName)
			doc.Servers[key] = srv
		}
	}

	return s.save(doc)
}

// AddServerToGroup tags a server with an existing group.
func (s *GlobalStore) AddServerToGroup(server, group string) error {
	group = schema.StripGroupPrefix(group)

	doc, err := s.load()
	if err != nil {
		return err
	}

	srv, ok := doc.Servers[server]
	if !ok {
		return fmt.Errorf("%w: %s", interrs.ErrServerNotFound, server)
	}
	g, ok := doc.Groups[group]
	if !ok {
		return fmt.Errorf("%w: %s", interrs.ErrGroupNotFound, group)
	}

	srv.AddGroup(group)
	doc.Servers[server] = srv
	g.Touch()
	doc.Groups[group] = g

	return s.save(doc)
}

// RemoveServerFromGroup removes the tag from the server.
func (s *GlobalStore) RemoveServerFromGroup(server, group string) error {
	group = schema.StripGroupPrefix(group)

	doc, err := s.load()
	if err != nil {
		return err
	}

	srv, ok := doc.Servers[server]
	if !ok {
		return fmt.Errorf("%w: %s", interrs.ErrServerNotFound, server)
	}
	if _, ok := doc.Groups[group]; !ok {
		return fmt.Errorf("%w: %s", interrs.ErrGroupNotFound, group)
	}

	srv.RemoveGroup(group)
	doc.Servers[server] = srv

	return s.save(doc)
}

// GroupServers returns the members of a group, sorted by name.
func (s *GlobalStore) GroupServers(group string) ([]schema.RuntimeServer, error) {
	group = schema.StripGroupPrefix(group)

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	if _, ok := doc.Groups[group]; !ok {
		return nil, fmt.Errorf("%w: %s", interrs.ErrGroupNotFound, group)
	}

	members := make([]schema.RuntimeServer, 0)
	for _, srv := range doc.Servers {
		if srv.HasGroup(group) {
			members = append(members, srv)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })

	return members, nil
}

// Lockfile returns the global lockfile, empty when none exists.
func (s *GlobalStore) Lockfile() (schema.Lockfile, error) {
	return loadLockfile(s.lockPath)
}

// Pin records a lock entry for a server.
func (s *GlobalStore) Pin(name string, entry schema.LockEntry) error {
	lock, err := s.Lockfile()
	if err != nil {
		return err
	}

	lock.Pin(name, entry)

	return files.WriteJSONAtomic(s.lockPath, lock, perms.RegularFile)
}

func (s *GlobalStore) unpin(name string) error {
	lock, err := s.Lockfile()
	if err != nil {
		return err
	}

	if _, ok := lock.Servers[name]; !ok {
		return nil
	}
	lock.Unpin(name)

	return files.WriteJSONAtomic(s.lockPath, lock, perms.RegularFile)
}

// load reads the store document. A missing file is an empty store; a corrupt
// file is an error the caller sees, never silently discarded state.
func (s *GlobalStore) load() (globalDocument, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return globalDocument{
				Servers: map[string]schema.RuntimeServer{},
				Groups:  map[string]schema.Group{},
			}, nil
		}
		return globalDocument{}, fmt.Errorf("failed to read global store: %w", err)
	}

	var doc globalDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return globalDocument{}, fmt.Errorf("corrupt global store %s: %w", s.path, err)
	}

	return doc, nil
}

// save rewrites the store document. It embeds every server's env values,
// which may be secrets, so the file is owner-only.
func (s *GlobalStore) save(doc globalDocument) error {
	return files.WriteJSONAtomic(s.path, doc, perms.SecureFile)
}

// loadLockfile reads a lockfile, returning an empty one when absent.
func loadLockfile(path string) (schema.Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return schema.NewLockfile(), nil
		}
		return schema.Lockfile{}, fmt.Errorf("failed to read lockfile: %w", err)
	}

	var lock schema.Lockfile
	if err := json.Unmarshal(data, &lock); err != nil {
		return schema.Lockfile{}, fmt.Errorf("corrupt lockfile %s: %w", path, err)
	}
	if lock.LockfileVersion == 0 {
		lock.LockfileVersion = schema.CurrentLockfileVersion
	}

	return lock, nil
}
