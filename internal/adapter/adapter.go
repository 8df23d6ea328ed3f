// Package adapter converts registry server records into runtime
// configurations ready for storage and client synchronization.
package adapter

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	interrs "github.com/cpm-sh/cpm/internal/errors"
	"github.com/cpm-sh/cpm/internal/schema"
)

// Option defines a functional option for Adapt.
type Option func(*Options) error

// Options contains optional configuration for adapting a server.
type Options struct {
	// alias overrides the derived simple name.
	alias string

	// envOverrides are user-supplied environment values applied on top of
	// the registry declarations.
	envOverrides map[string]string

	// logger records adaptation decisions, such as falling back to a
	// non-stdio package.
	logger hclog.Logger
}

func NewOptions(opts ...Option) (Options, error) {
	o := Options{
		envOverrides: map[string]string{},
		logger:       hclog.NewNullLogger(),
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&o); err != nil {
			return Options{}, err
		}
	}

	return o, nil
}

// WithAlias overrides the simple name the server is stored under.
func WithAlias(alias string) Option {
	return func(o *Options) error {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			return fmt.Errorf("alias cannot be empty")
		}
		if strings.Contains(alias, "/") {
			return fmt.Errorf("%w: alias %q must not contain '/'", interrs.ErrInvalidName, alias)
		}
		o.alias = alias
		return nil
	}
}

// WithLogger attaches a logger to the adaptation.
func WithLogger(logger hclog.Logger) Option {
	return func(o *Options) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithEnvOverrides supplies environment values that take precedence over
// registry-declared defaults.
func WithEnvOverrides(env map[string]string) Option {
	return func(o *Options) error {
		for k, v := range env {
			o.envOverrides[k] = v
		}
		return nil
	}
}

// Adapt converts a registry record into a runtime server. Package installs
// are preferred over remotes; a server offering neither returns
// ErrNoInstallMethod.
func Adapt(detail schema.ServerDetail, opt ...Option) (schema.RuntimeServer, error) {
	opts, err := NewOptions(opt...)
	if err != nil {
		return schema.RuntimeServer{}, err
	}

	name := opts.alias
	if name == "" {
		name = schema.SimpleName(detail.Name)
	}

	switch {
	case len(detail.Packages) > 0:
		return adaptPackage(detail, name, opts)
	case len(detail.Remotes) > 0:
		return adaptRemote(detail, name, opts.envOverrides)
	default:
		return schema.RuntimeServer{}, fmt.Errorf(
			"%w: %s has no packages or remotes", interrs.ErrNoInstallMethod, detail.Name,
		)
	}
}

func adaptPackage(detail schema.ServerDetail, name string, opts Options) (schema.RuntimeServer, error) {
	pkg, fallback := detail.BestPackage()
	if fallback {
		opts.logger.Warn("No stdio package declared, using first package",
			"server", detail.Name, "transport", pkg.Transport.Type)
	}

	command, args, err := synthesizeCommand(pkg)
	if err != nil {
		return schema.RuntimeServer{}, err
	}

	srv := schema.NewStdioServer(name, command, args)
	srv.RegistryName = detail.Name
	srv.Env = extractEnv(pkg, opts.envOverrides)
	srv.Registry = &detail

	return srv, nil
}

func adaptRemote(detail schema.ServerDetail, name string, overrides map[string]string) (schema.RuntimeServer, error) {
	remote := detail.BestRemote()

	headers := make(map[string]string, len(remote.Headers))
	for _, h := range remote.Headers {
		headers[h.Name] = h.Value
	}
	for k, v := range overrides {
		headers[k] = v
	}

	srv := schema.NewRemoteServer(name, remote.Type, remote.URL, headers)
	srv.RegistryName = detail.Name
	// Headers double as the env map so config commands edit one surface.
	srv.Env = headers
	srv.Registry = &detail

	return srv, nil
}

// synthesizeCommand maps a package's registry type to the command that
// launches it. RuntimeHint overrides the default launcher, and is the only
// way to run a package of an unrecognized registry type.
func synthesizeCommand(pkg schema.Package) (string, []string, error) {
	command := pkg.RuntimeHint
	var args []string

	switch pkg.RegistryType {
	case schema.RegistryTypeNPM:
		if command == "" {
			command = "npx"
		}
		args = []string{"-y", pkg.Identifier}
	case schema.RegistryTypePyPI:
		if command == "" {
			command = "uvx"
		}
		args = []string{pkg.Identifier}
	case schema.RegistryTypeOCI:
		if command == "" {
			command = "docker"
		}
		args = []string{"run", "--rm", pkg.Identifier}
	case schema.RegistryTypeNuGet:
		if command == "" {
			command = "dotnet"
		}
		args = []string{"tool", "run", pkg.Identifier}
	case schema.RegistryTypeMCPB:
		command = "curl"
		base := pkg.Identifier
		if idx := strings.LastIndex(base, "/"); idx >= 0 {
			base = base[idx+1:]
		}
		args = []string{"-L", "-o", base, pkg.Identifier}
	default:
		if command == "" {
			return "", nil, fmt.Errorf(
				"%w: %q has no known launcher and no runtime hint",
				interrs.ErrUnsupportedPackageType, pkg.RegistryType,
			)
		}
		args = []string{pkg.Identifier}
	}

	for _, a := range pkg.PackageArguments {
		switch a.Type {
		case schema.ArgumentPositional:
			args = append(args, a.Value)
		case schema.ArgumentNamed:
			args = append(args, a.Name)
			if a.Value != "" {
				args = append(args, a.Value)
			}
		}
	}

	return command, args, nil
}

// extractEnv builds the env map from the package declarations. Every
// declared variable gets a key: override wins, then the declared default,
// then empty string. Override keys not declared by the package are kept.
func extractEnv(pkg schema.Package, overrides map[string]string) map[string]string {
	env := make(map[string]string, len(pkg.EnvironmentVariables)+len(overrides))

	for _, v := range pkg.EnvironmentVariables {
		if val, ok := overrides[v.Name]; ok {
			env[v.Name] = val
		} else if v.Default != "" {
			env[v.Name] = v.Default
		} else {
			env[v.Name] = ""
		}
	}

	for k, v := range overrides {
		env[k] = v
	}

	return env
}

// MissingRequiredVars returns the names of required environment variables
// that are still unconfigured on the server: empty values, or values left
// as the literal ${NAME} placeholder.
func MissingRequiredVars(srv schema.RuntimeServer) []string {
	if srv.Registry == nil || len(srv.Registry.Packages) == 0 {
		return nil
	}

	pkg, _ := srv.Registry.BestPackage()

	var missing []string
	for _, v := range pkg.EnvironmentVariables {
		if !v.IsRequired {
			continue
		}
		val := srv.Env[v.Name]
		if val == "" || schema.IsPlaceholder(val) {
			missing = append(missing, v.Name)
		}
	}

	return missing
}
