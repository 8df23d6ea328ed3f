// Package errors defines domain-level errors used throughout the application.
// These sentinels are wrapped with %w at call sites so the CLI layer can
// classify failures with errors.Is and decide on user messaging; the core
// itself never prints.
package errors

import (
	"errors"
)

var (
	// ErrServerNotFound indicates that the requested server does not exist in
	// the selected scope, a client config, or the registry.
	ErrServerNotFound = errors.New("server not found")

	// ErrServerExists indicates an attempt to create a server that already
	// exists without passing force. Callers decide to skip, force, or abort.
	ErrServerExists = errors.New("server already exists")

	// ErrGroupNotFound indicates that the named group does not exist in the
	// selected scope.
	ErrGroupNotFound = errors.New("group not found")

	// ErrGroupExists indicates an attempt to create a group that already exists.
	ErrGroupExists = errors.New("group already exists")

	// ErrClientNotFound indicates that the named MCP client is not supported.
	ErrClientNotFound = errors.New("client not found")

	// ErrInvalidName indicates a name that fails validation (e.g. a registry
	// name that is not in reverse-DNS namespace/servername form).
	// Surfaced before any mutation is attempted.
	ErrInvalidName = errors.New("invalid name")

	// ErrInvalidVersion indicates a string that cannot be parsed as a
	// semantic version or range specifier.
	ErrInvalidVersion = errors.New("invalid version")

	// ErrVersionNotFound indicates the server name is known to the registry
	// but the explicitly requested version is not. Distinct from
	// ErrServerNotFound, which means the name itself is unknown.
	ErrVersionNotFound = errors.New("version not found")

	// ErrNoInstallMethod indicates a registry server declares neither
	// packages nor remotes, so no runtime configuration can be produced.
	ErrNoInstallMethod = errors.New("no installation method available")

	// ErrUnsupportedPackageType indicates a package registry type outside
	// the known mapping with no runtime hint to fall back on.
	ErrUnsupportedPackageType = errors.New("unsupported package registry type")

	// ErrUnsupportedServer indicates a client cannot represent the given
	// server kind (e.g. a remote server pushed to a stdio-only client).
	// Adapters report this rather than silently dropping the server.
	ErrUnsupportedServer = errors.New("server kind not supported by client")

	// ErrResolutionCancelled indicates the user declined interactive
	// disambiguation. The aborted resolution must not be cached.
	ErrResolutionCancelled = errors.New("name resolution cancelled")

	// ErrNoProject indicates local scope was forced but no project manifest
	// exists in the working directory.
	ErrNoProject = errors.New("no project manifest found")
)
