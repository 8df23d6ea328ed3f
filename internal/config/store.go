// Package config implements the persistent server stores: the per-user
// global store, the per-project local store, and the context that selects
// between them. Both stores expose the same operation set so callers never
// branch on scope.
package config

import (
	"github.com/cpm-sh/cpm/internal/schema"
)

// File names used by the stores.
const (
	// GlobalStoreFileName is the single-document global server store.
	GlobalStoreFileName = "servers.json"

	// GlobalLockFileName sits alongside the global store.
	GlobalLockFileName = "servers-lock.json"

	// ManifestFileName is the project manifest at the project root.
	ManifestFileName = "server.json"

	// LockFileName is the project lockfile at the project root.
	LockFileName = "server-lock.json"

	// ProjectDirName is the project-local state directory.
	ProjectDirName = ".cpm"

	// ServersDirName holds one JSON file per installed server, under
	// ProjectDirName.
	ServersDirName = "servers"
)

// AddOptions controls how a server is recorded by AddServer.
type AddOptions struct {
	// Force overwrites an existing server instead of failing with
	// ErrServerExists.
	Force bool

	// Dev records the server as a dev-only dependency. Local scope only;
	// the global store ignores it.
	Dev bool

	// VersionSpec is the manifest version specifier to record. Local scope
	// only. Empty means 'latest'.
	VersionSpec string
}

// Store is the uniform surface over the global and local server stores.
// Mutating operations load, modify, and atomically rewrite whole documents;
// concurrent CLI invocations race last-writer-wins.
type Store interface {
	// Servers returns every installed server keyed by simple name.
	Servers() (map[string]schema.RuntimeServer, error)

	// Server returns one installed server, or ErrServerNotFound.
	Server(name string) (schema.RuntimeServer, error)

	// AddServer records a server. Fails with ErrServerExists unless
	// opts.Force is set.
	AddServer(srv schema.RuntimeServer, opts AddOptions) error

	// RemoveServer deletes a server, its group memberships, and its lock
	// entry. Fails with ErrServerNotFound when absent.
	RemoveServer(name string) error

	// UpdateServerEnv replaces the server's entire env map. Key deletion is
	// expressed by omitting the key from the replacement map.
	UpdateServerEnv(name string, env map[string]string) error

	// Version returns the version specifier a server is pinned to.
	// Pinning only exists in local scope; the global store reports false.
	Version(name string) (string, bool)

	// Groups returns all known groups.
	Groups() ([]schema.Group, error)

	// CreateGroup creates a group, failing with ErrGroupExists if present.
	CreateGroup(name, description string) error

	// DeleteGroup removes a group and strips its tag from every server.
	// Member servers stay installed.
	DeleteGroup(name string) error

	// RenameGroup renames a group, retagging every member server.
	RenameGroup(oldName, newName string) error

	// AddServerToGroup tags a server with an existing group. An unknown
	// group surfaces ErrGroupNotFound; callers decide whether to create it.
	AddServerToGroup(server, group string) error

	// RemoveServerFromGroup removes the tag from the server.
	RemoveServerFromGroup(server, group string) error

	// GroupServers returns the members of a group.
	GroupServers(group string) ([]schema.RuntimeServer, error)

	// Lockfile returns the current lockfile, empty when none exists.
	Lockfile() (schema.Lockfile, error)

	// Pin records a lock entry for a server.
	Pin(name string, entry schema.LockEntry) error

	// Path identifies the store's primary document, for display.
	Path() string
}
