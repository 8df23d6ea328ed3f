package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/hashicorp/go-hclog"

	interrs "github.com/cpm-sh/cpm/internal/errors"
	"github.com/cpm-sh/cpm/internal/files"
	"github.com/cpm-sh/cpm/internal/perms"
	"github.com/cpm-sh/cpm/internal/schema"
	"github.com/cpm-sh/cpm/internal/semver"
)

// LocalStore keeps project-scoped servers: a manifest at the project root,
// one JSON file per server under .cpm/servers/, and a lockfile. The
// manifest's group lists are authoritative; the groups tag on each server
// file is kept consistent on every membership mutation.
type LocalStore struct {
	logger     hclog.Logger
	root       string
	manifest   string
	lockPath   string
	serversDir string
}

var _ Store = (*LocalStore)(nil)

// HasProject reports whether dir contains a project manifest.
func HasProject(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ManifestFileName))
	return err == nil && !info.IsDir()
}

// InitProject writes a fresh manifest into dir. Fails when one already exists.
func InitProject(dir, name, version string) (schema.Manifest, error) {
	if HasProject(dir) {
		return schema.Manifest{}, fmt.Errorf("project manifest already exists in %s", dir)
	}
	if name == "" {
		name = filepath.Base(dir)
	}

	m := schema.NewManifest(name, version)
	if err := files.WriteJSONAtomic(filepath.Join(dir, ManifestFileName), m, perms.RegularFile); err != nil {
		return schema.Manifest{}, err
	}

	return m, nil
}

// NewLocalStore opens the project store rooted at dir, failing with
// ErrNoProject when no manifest exists there.
func NewLocalStore(logger hclog.Logger, dir string) (*LocalStore, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if !HasProject(dir) {
		return nil, fmt.Errorf("%w: %s", interrs.ErrNoProject, dir)
	}

	return &LocalStore{
		logger:     logger.Named("config.local"),
		root:       dir,
		manifest:   filepath.Join(dir, ManifestFileName),
		lockPath:   filepath.Join(dir, LockFileName),
		serversDir: filepath.Join(dir, ProjectDirName, ServersDirName),
	}, nil
}

// Path identifies the project manifest, for display.
func (s *LocalStore) Path() string {
	return s.manifest
}

// Manifest returns the parsed project manifest.
func (s *LocalStore) Manifest() (schema.Manifest, error) {
	data, err := os.ReadFile(s.manifest)
	if err != nil {
		return schema.Manifest{}, fmt.Errorf("failed to read project manifest: %w", err)
	}

	var m schema.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return schema.Manifest{}, fmt.Errorf("corrupt project manifest %s: %w", s.manifest, err)
	}
	if err := m.Validate(); err != nil {
		return schema.Manifest{}, err
	}

	return m, nil
}

func (s *LocalStore) saveManifest(m schema.Manifest) error {
	return files.WriteJSONAtomic(s.manifest, m, perms.RegularFile)
}

// SetProjectVersion rewrites the manifest's own version field.
func (s *LocalStore) SetProjectVersion(version string) error {
	m, err := s.Manifest()
	if err != nil {
		return err
	}
	m.Version = version

	return s.saveManifest(m)
}

// Servers returns every installed server the manifest declares. Declared
// servers whose file is missing are skipped with a warning.
func (s *LocalStore) Servers() (map[string]schema.RuntimeServer, error) {
	m, err := s.Manifest()
	if err != nil {
		return nil, err
	}

	servers := make(map[string]schema.RuntimeServer, len(m.Servers)+len(m.DevServers))
	for _, name := range m.ServerNames() {
		srv, err := s.loadServerFile(name)
		if err != nil {
			if os.IsNotExist(err) {
				s.logger.Warn("Manifest declares server with no config file", "server", name)
				continue
			}
			return nil, err
		}
		servers[name] = srv
	}

	return servers, nil
}

// Server returns one installed server, or ErrServerNotFound.
func (s *LocalStore) Server(name string) (schema.RuntimeServer, error) {
	m, err := s.Manifest()
	if err != nil {
		return schema.RuntimeServer{}, err
	}
	if !m.HasServer(name) {
		return schema.RuntimeServer{}, fmt.Errorf("%w: %s", interrs.ErrServerNotFound, name)
	}

	srv, err := s.loadServerFile(name)
	if err != nil {
		if os.IsNotExist(err) {
			return schema.RuntimeServer{}, fmt.Errorf("%w: %s (config file missing)", interrs.ErrServerNotFound, name)
		}
		return schema.RuntimeServer{}, err
	}

	return srv, nil
}

// AddServer records a server in the manifest and writes its config file.
func (s *LocalStore) AddServer(srv schema.RuntimeServer, opts AddOptions) error {
	m, err := s.Manifest()
	if err != nil {
		return err
	}

	if m.HasServer(srv.Name) && !opts.Force {
		return fmt.Errorf("%w: %s", interrs.ErrServerExists, srv.Name)
	}

	spec := opts.VersionSpec
	if spec == "" {
		spec = semver.Latest
	}

	// A forced re-add may move the server between sections.
	delete(m.Servers, srv.Name)
	delete(m.DevServers, srv.Name)
	if opts.Dev {
		m.DevServers[srv.Name] = spec
	} else {
		m.Servers[srv.Name] = spec
	}

	if err := s.saveServerFile(srv); err != nil {
		return err
	}

	return s.saveManifest(m)
}

// RemoveServer deletes the server from the manifest, every group list, its
// config file, and the lockfile.
func (s *LocalStore) RemoveServer(name string) error {
	m, err := s.Manifest()
	if err != nil {
		return err
	}
	if !m.HasServer(name) {
		return fmt.Errorf("%w: %s", interrs.ErrServerNotFound, name)
	}

	delete(m.Servers, name)
	delete(m.DevServers, name)
	delete(m.Config, name)
	for group, members := range m.Groups {
		if idx := slices.Index(members, name); idx != -1 {
			m.Groups[group] = slices.Delete(members, idx, idx+1)
		}
	}

	if err := os.Remove(s.serverPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove server config file: %w", err)
	}
	if err := s.saveManifest(m); err != nil {
		return err
	}

	return s.unpin(name)
}

// UpdateServerEnv replaces the server's entire env map, in both its config
// file and the manifest's config section.
func (s *LocalStore) UpdateServerEnv(name string, env map[string]string) error {
	m, err := s.Manifest()
	if err != nil {
		return err
	}
	if !m.HasServer(name) {
		return fmt.Errorf("%w: %s", interrs.ErrServerNotFound, name)
	}

	srv, err := s.loadServerFile(name)
	if err != nil {
		return fmt.Errorf("%w: %s", interrs.ErrServerNotFound, name)
	}

	if env == nil {
		env = map[string]string{}
	}
	srv.Env = env
	if err := s.saveServerFile(srv); err != nil {
		return err
	}

	m.Config[name] = env

	return s.saveManifest(m)
}

// Version returns the manifest version specifier for the server.
func (s *LocalStore) Version(name string) (string, bool) {
	m, err := s.Manifest()
	if err != nil {
		return "", false
	}

	return m.ServerVersion(name)
}

// Groups returns the manifest's groups, sorted by name.
func (s *LocalStore) Groups() ([]schema.Group, error) {
	m, err := s.Manifest()
	if err != nil {
		return nil, err
	}

	groups := make([]schema.Group, 0, len(m.Groups))
	for name := range m.Groups {
		groups = append(groups, schema.Group{Name: name})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })

	return groups, nil
}

// CreateGroup adds an empty group list to the manifest.
func (s *LocalStore) CreateGroup(name, _ string) error {
	name = schema.StripGroupPrefix(name)

	m, err := s.Manifest()
	if err != nil {
		return err
	}

	if _, ok := m.Groups[name]; ok {
		return fmt.Errorf("%w: %s", interrs.ErrGroupExists, name)
	}
	m.Groups[name] = []string{}

	return s.saveManifest(m)
}

// DeleteGroup removes the group list and strips the tag from every member's
// config file. Member servers stay installed.
func (s *LocalStore) DeleteGroup(name string) error {
	name = schema.StripGroupPrefix(name)

	m, err := s.Manifest()
	if err != nil {
		return err
	}

	members, ok := m.Groups[name]
	if !ok {
		return fmt.Errorf("%w: %s", interrs.ErrGroupNotFound, name)
	}

	for _, member := range members {
		if err := s.retagServer(member, func(srv *schema.RuntimeServer) {
			srv.RemoveGroup(name)
		}); err != nil {
			return err
		}
	}
	delete(m.Groups, name)

	return s.saveManifest(m)
}

// RenameGroup moves the member list to the new name, retagging every member.
func (s *LocalStore) RenameGroup(oldName, newName string) error {
	oldName = schema.StripGroupPrefix(oldName)
	newName = schema.StripGroupPrefix(newName)

	m, err := s.Manifest()
	if err != nil {
		return err
	}

	members, ok := m.Groups[oldName]
	if !ok {
		return fmt.Errorf("%w: %s", interrs.ErrGroupNotFound, oldName)
	}
	if _, ok := m.Groups[newName]; ok {
		return fmt.Errorf("%w: %s", interrs.ErrGroupExists, newName)
	}

	for _, member := range members {
		if err := s.retagServer(member, func(srv *schema.RuntimeServer) {
			srv.RemoveGroup(oldName)
			srv.AddGroup(newName)
		}); err != nil {
			return err
		}
	}

	delete(m.Groups, oldName)
	m.Groups[newName] = members

	return s.saveManifest(m)
}

// AddServerToGroup appends the server to the group list and tags its file.
func (s *LocalStore) AddServerToGroup(server, group string) error {
	group = schema.StripGroupPrefix(group)

	m, err := s.Manifest()
	if err != nil {
		return err
	}

	if !m.HasServer(server) {
		return fmt.Errorf("%w: %s", interrs.ErrServerNotFound, server)
	}
	members, ok := m.Groups[group]
	if !ok {
		return fmt.Errorf("%w: %s", interrs.ErrGroupNotFound, group)
	}

	if err := s.retagServer(server, func(srv *schema.RuntimeServer) {
		srv.AddGroup(group)
	}); err != nil {
		return err
	}

	if !slices.Contains(members, server) {
		m.Groups[group] = append(members, server)
	}

	return s.saveManifest(m)
}

// RemoveServerFromGroup removes the server from the group list and untags
// its file.
func (s *LocalStore) RemoveServerFromGroup(server, group string) error {
	group = schema.StripGroupPrefix(group)

	m, err := s.Manifest()
	if err != nil {
		return err
	}

	if !m.HasServer(server) {
		return fmt.Errorf("%w: %s", interrs.ErrServerNotFound, server)
	}
	members, ok := m.Groups[group]
	if !ok {
		return fmt.Errorf("%w: %s", interrs.ErrGroupNotFound, group)
	}

	if err := s.retagServer(server, func(srv *schema.RuntimeServer) {
		srv.RemoveGroup(group)
	}); err != nil {
		return err
	}

	if idx := slices.Index(members, server); idx != -1 {
		m.Groups[group] = slices.Delete(members, idx, idx+1)
	}

	return s.saveManifest(m)
}

// GroupServers returns the group members in manifest order.
func (s *LocalStore) GroupServers(group string) ([]schema.RuntimeServer, error) {
	group = schema.StripGroupPrefix(group)

	m, err := s.Manifest()
	if err != nil {
		return nil, err
	}

	members, ok := m.Groups[group]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interrs.ErrGroupNotFound, group)
	}

	servers := make([]schema.RuntimeServer, 0, len(members))
	for _, name := range members {
		srv, err := s.loadServerFile(name)
		if err != nil {
			if os.IsNotExist(err) {
				s.logger.Warn("Group member has no config file", "group", group, "server", name)
				continue
			}
			return nil, err
		}
		servers = append(servers, srv)
	}

	return servers, nil
}

// Lockfile returns the project lockfile, empty when none exists.
func (s *LocalStore) Lockfile() (schema.Lockfile, error) {
	return loadLockfile(s.lockPath)
}

// Pin records a lock entry for a server.
func (s *LocalStore) Pin(name string, entry schema.LockEntry) error {
	lock, err := s.Lockfile()
	if err != nil {
		return err
	}

	lock.Pin(name, entry)

	return files.WriteJSONAtomic(s.lockPath, lock, perms.RegularFile)
}

func (s *LocalStore) unpin(name string) error {
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

// retagServer applies a group-tag mutation to a server's config file.
// A missing file is tolerated: the manifest list is authoritative.
func (s *LocalStore) retagServer(name string, mutate func(*schema.RuntimeServer)) error {
	srv, err := s.loadServerFile(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	mutate(&srv)

	return s.saveServerFile(srv)
}

func (s *LocalStore) serverPath(name string) string {
	return filepath.Join(s.serversDir, name+".json")
}

func (s *LocalStore) loadServerFile(name string) (schema.RuntimeServer, error) {
	data, err := os.ReadFile(s.serverPath(name))
	if err != nil {
		return schema.RuntimeServer{}, err
	}

	var srv schema.RuntimeServer
	if err := json.Unmarshal(data, &srv); err != nil {
		return schema.RuntimeServer{}, fmt.Errorf("corrupt server config %s: %w", s.serverPath(name), err)
	}

	return srv, nil
}

// saveServerFile writes a server's config file. Server files carry env
// values, which may be secrets, so both the directory and the file are
// owner-only.
func (s *LocalStore) saveServerFile(srv schema.RuntimeServer) error {
	if err := files.EnsureAtLeastSecureDir(s.serversDir); err != nil {
		return err
	}

	return files.WriteJSONAtomic(s.serverPath(srv.Name), srv, perms.SecureFile)
}
