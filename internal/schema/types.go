// Package schema defines the entity shapes shared across the application:
// registry-sourced server descriptions, the normalized runtime configuration,
// groups, the project manifest, and lockfile entries.
//
// Registry types follow the MCP registry server.json standard
// (https://static.modelcontextprotocol.io/schemas/2025-10-17/server.schema.json).
package schema

import (
	"fmt"
	"strings"

	interrs "github.com/cpm-sh/cpm/internal/errors"
)

// Transport type discriminants (MCP standard).
const (
	TransportStdio          = "stdio"
	TransportStreamableHTTP = "streamable-http"
	TransportSSE            = "sse"
)

// Package registry types (MCP standard).
const (
	RegistryTypeNPM   = "npm"
	RegistryTypePyPI  = "pypi"
	RegistryTypeOCI   = "oci"
	RegistryTypeNuGet = "nuget"
	RegistryTypeMCPB  = "mcpb"
)

// Argument kinds.
const (
	ArgumentPositional = "positional"
	ArgumentNamed      = "named"
)

// Transport describes how a server communicates. The Type field is the
// discriminant; URL and Headers are only meaningful for remote transports.
type Transport struct {
	Type    string          `json:"type"`
	URL     string          `json:"url,omitempty"`
	Headers []KeyValueInput `json:"headers,omitempty"`
}

// KeyValueInput is a declared environment variable or header (MCP standard).
type KeyValueInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	IsRequired  bool     `json:"isRequired,omitempty"`
	IsSecret    bool     `json:"isSecret,omitempty"`
	Format      string   `json:"format,omitempty"`
	Value       string   `json:"value,omitempty"`
	Default     string   `json:"default,omitempty"`
	Choices     []string `json:"choices,omitempty"`
}

// Argument is a declared command-line argument (MCP standard).
type Argument struct {
	Type        string `json:"type"`
	Name        string `json:"name,omitempty"`
	Value       string `json:"value,omitempty"`
	ValueHint   string `json:"valueHint,omitempty"`
	Description string `json:"description,omitempty"`
	IsRequired  bool   `json:"isRequired,omitempty"`
	IsRepeated  bool   `json:"isRepeated,omitempty"`
}

// Repository holds source repository information for a server.
type Repository struct {
	URL       string `json:"url"`
	Source    string `json:"source"`
	ID        string `json:"id,omitempty"`
	Subfolder string `json:"subfolder,omitempty"`
}

// Icon is a server icon reference.
type Icon struct {
	Src      string   `json:"src"`
	MIMEType string   `json:"mimeType,omitempty"`
	Sizes    []string `json:"sizes,omitempty"`
	Theme    string   `json:"theme,omitempty"`
}

// Package describes one installable distribution of a server.
type Package struct {
	RegistryType         string          `json:"registryType"`
	Identifier           string          `json:"identifier"`
	Version              string          `json:"version,omitempty"`
	RegistryBaseURL      string          `json:"registryBaseUrl,omitempty"`
	FileSHA256           string          `json:"fileSha256,omitempty"`
	RuntimeHint          string          `json:"runtimeHint,omitempty"`
	Transport            Transport       `json:"transport"`
	RuntimeArguments     []Argument      `json:"runtimeArguments,omitempty"`
	PackageArguments     []Argument      `json:"packageArguments,omitempty"`
	EnvironmentVariables []KeyValueInput `json:"environmentVariables,omitempty"`
}

// ServerDetail is the full registry description of a server, an immutable
// snapshot fetched from the registry. It is never persisted mutably, only
// referenced from runtime configs and copied into lockfile entries.
type ServerDetail struct {
	Schema      string      `json:"$schema,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Version     string      `json:"version"`
	Status      string      `json:"status,omitempty"`
	Title       string      `json:"title,omitempty"`
	WebsiteURL  string      `json:"websiteUrl,omitempty"`
	Repository  *Repository `json:"repository,omitempty"`
	Icons       []Icon      `json:"icons,omitempty"`
	Packages    []Package   `json:"packages,omitempty"`
	Remotes     []Transport `json:"remotes,omitempty"`
}

// ServerRecord is the wire shape of one registry list entry: the server
// description nested under a 'server' key alongside optional metadata.
type ServerRecord struct {
	Server ServerDetail   `json:"server"`
	Meta   map[string]any `json:"_meta,omitempty"`
}

// Validate checks the reverse-DNS naming convention: exactly one forward
// slash separating a non-empty namespace and server name.
func (s *ServerDetail) Validate() error {
	if err := ValidateRegistryName(s.Name); err != nil {
		return err
	}
	if strings.TrimSpace(s.Version) == "" {
		return fmt.Errorf("%w: server %q has no version", interrs.ErrInvalidVersion, s.Name)
	}

	return nil
}

// Installable reports whether the server declares at least one package or
// remote, i.e. whether an installation method exists at all.
func (s *ServerDetail) Installable() bool {
	return len(s.Packages) > 0 || len(s.Remotes) > 0
}

// HasStdioOption reports whether any declared package runs over stdio.
func (s *ServerDetail) HasStdioOption() bool {
	for _, pkg := range s.Packages {
		if pkg.Transport.Type == TransportStdio {
			return true
		}
	}

	return false
}

// BestPackage returns the preferred package: the first stdio-transport
// package, else the first declared package. The boolean reports whether the
// fallback (non-stdio) path was taken.
func (s *ServerDetail) BestPackage() (Package, bool) {
	for _, pkg := range s.Packages {
		if pkg.Transport.Type == TransportStdio {
			return pkg, false
		}
	}

	return s.Packages[0], true
}

// BestRemote returns the preferred remote: streamable-http when declared,
// else the first remote.
func (s *ServerDetail) BestRemote() Transport {
	for _, remote := range s.Remotes {
		if remote.Type == TransportStreamableHTTP {
			return remote
		}
	}

	return s.Remotes[0]
}

// ValidateRegistryName enforces the reverse-DNS naming convention
// (namespace/servername, exactly one forward slash, both parts non-empty).
func ValidateRegistryName(name string) error {
	parts := strings.Split(name, "/")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return fmt.Errorf("%w: %q is not in reverse-DNS namespace/servername form", interrs.ErrInvalidName, name)
	}

	return nil
}

// SimpleName returns the segment after the last '/', i.e. the short
// human-friendly form of a canonical registry name.
func SimpleName(name string) string {
	if idx := strings.LastIndex(name, "/"); idx != -1 {
		return name[idx+1:]
	}

	return name
}

// IsCanonicalName reports whether the name contains a namespace separator and
// therefore needs no registry resolution.
func IsCanonicalName(name string) bool {
	return strings.Contains(name, "/")
}

// StripGroupPrefix removes the leading '@' display sugar from a group name.
func StripGroupPrefix(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "@")
}
