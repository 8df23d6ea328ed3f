package schema

import (
	"encoding/json"
	"regexp"
	"slices"
)

// placeholderPattern matches env values of the literal form ${NAME}, the
// convention for "declared but unconfigured". Exact form only, not any value
// starting with '$'.
var placeholderPattern = regexp.MustCompile(`^\$\{[^}]+\}$`)

// RuntimeServer is the normalized, locally-executable form of a server,
// independent of its registry or client-native representation.
// InstallMethod is the discriminant: stdio servers carry Command/Args, remote
// servers (streamable-http, sse) carry URL/Headers. Exactly one of the two
// shapes is populated; NewStdioServer and NewRemoteServer enforce this.
type RuntimeServer struct {
	Name          string            `json:"name"`
	RegistryName  string            `json:"registry_name,omitempty"`
	InstallMethod string            `json:"install_method"`
	Command       string            `json:"command,omitempty"`
	Args          []string          `json:"args"`
	URL           string            `json:"url,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Env           map[string]string `json:"env"`
	Groups        []string          `json:"groups"`

	// Registry is the original registry snapshot, kept for missing-variable
	// detection and lockfile entries.
	Registry *ServerDetail `json:"original_config,omitempty"`
}

// NewStdioServer constructs a stdio runtime server with initialized collections.
func NewStdioServer(name, command string, args []string) RuntimeServer {
	if args == nil {
		args = []string{}
	}

	return RuntimeServer{
		Name:          name,
		InstallMethod: TransportStdio,
		Command:       command,
		Args:          args,
		Env:           map[string]string{},
		Groups:        []string{},
	}
}

// NewRemoteServer constructs a remote runtime server with initialized collections.
// The method must be TransportStreamableHTTP or TransportSSE.
func NewRemoteServer(name, method, url string, headers map[string]string) RuntimeServer {
	if headers == nil {
		headers = map[string]string{}
	}

	return RuntimeServer{
		Name:          name,
		InstallMethod: method,
		URL:           url,
		Args:          []string{},
		Headers:       headers,
		Env:           map[string]string{},
		Groups:        []string{},
	}
}

// IsStdio reports whether the server runs as a local process over stdio.
func (s *RuntimeServer) IsStdio() bool {
	return s.InstallMethod == TransportStdio
}

// IsRemote reports whether the server is reached over HTTP (streamable-http or SSE).
func (s *RuntimeServer) IsRemote() bool {
	return s.InstallMethod == TransportStreamableHTTP || s.InstallMethod == TransportSSE
}

// AddGroup tags the server with a group. Adding an already-present group is a no-op.
func (s *RuntimeServer) AddGroup(group string) {
	group = StripGroupPrefix(group)
	if !slices.Contains(s.Groups, group) {
		s.Groups = append(s.Groups, group)
	}
}

// RemoveGroup removes a group tag. Removing an absent group is a no-op.
func (s *RuntimeServer) RemoveGroup(group string) {
	group = StripGroupPrefix(group)
	if idx := slices.Index(s.Groups, group); idx != -1 {
		s.Groups = slices.Delete(s.Groups, idx, idx+1)
	}
}

// HasGroup reports whether the server is tagged with the group.
func (s *RuntimeServer) HasGroup(group string) bool {
	return slices.Contains(s.Groups, StripGroupPrefix(group))
}

// UnmarshalJSON decodes a runtime server and normalizes absent collections to
// empty ones, so serialization round-trips losslessly.
func (s *RuntimeServer) UnmarshalJSON(data []byte) error {
	type alias RuntimeServer
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	*s = RuntimeServer(a)
	s.normalize()

	return nil
}

// normalize replaces nil collections with empty ones. Empty env/args/groups
// must serialize as {} and [], never null.
func (s *RuntimeServer) normalize() {
	if s.Args == nil {
		s.Args = []string{}
	}
	if s.Env == nil {
		s.Env = map[string]string{}
	}
	if s.Groups == nil {
		s.Groups = []string{}
	}
	if s.IsRemote() && s.Headers == nil {
		s.Headers = map[string]string{}
	}
}

// IsPlaceholder reports whether an env value is the literal ${NAME}
// placeholder form, i.e. declared but not yet configured.
func IsPlaceholder(value string) bool {
	return placeholderPattern.MatchString(value)
}
