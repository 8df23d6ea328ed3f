package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cpm-sh/cpm/internal/adapter"
	"github.com/cpm-sh/cpm/internal/cmd"
	"github.com/cpm-sh/cpm/internal/config"
	interrs "github.com/cpm-sh/cpm/internal/errors"
	"github.com/cpm-sh/cpm/internal/flags"
	"github.com/cpm-sh/cpm/internal/registry"
	"github.com/cpm-sh/cpm/internal/resolver"
	"github.com/cpm-sh/cpm/internal/schema"
	"github.com/cpm-sh/cpm/internal/semver"
)

// InstallCmd should be used to represent the 'install' command.
type InstallCmd struct {
	*cmd.BaseCmd
	Version string
	Alias   string
	Env     []string
	Groups  []string
	Dev     bool
	Force   bool
	Global  bool
	Local   bool
}

func NewInstallCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &InstallCmd{BaseCmd: baseCmd}

	cobraCommand := &cobra.Command{
		Use:     "install [<server-name>[@version]]",
		Aliases: []string{"add"},
		Short:   "Installs an MCP server from the registry.",
		Long:    c.longDescription(),
		Args:    cobra.MaximumNArgs(1),
		RunE:    c.run,
	}

	cobraCommand.Flags().StringVar(
		&c.Version,
		"version",
		"",
		"Specify the version of the server (defaults to latest)",
	)

	cobraCommand.Flags().StringVar(
		&c.Alias,
		"alias",
		"",
		"Optional, install the server under a different local name",
	)

	cobraCommand.Flags().StringArrayVar(
		&c.Env,
		"env",
		nil,
		"Optional, environment variable override as KEY=VALUE (can be repeated)",
	)

	cobraCommand.Flags().StringArrayVar(
		&c.Groups,
		"group",
		nil,
		"Optional, add the installed server to a group, creating it if needed (can be repeated)",
	)

	cobraCommand.Flags().BoolVar(
		&c.Dev,
		"dev",
		false,
		"Record the server as a dev-only dependency (local scope)",
	)

	cobraCommand.Flags().BoolVar(
		&c.Force,
		"force",
		false,
		"Reinstall the server if it is already installed",
	)

	flags.AddScopeFlags(cobraCommand.Flags(), &c.Global, &c.Local)

	return cobraCommand, nil
}

func (c *InstallCmd) longDescription() string {
	return `Installs an MCP server from the registry into the selected scope.

The server name is resolved against the registry: a canonical reverse-DNS
name (namespace/servername) is used as-is, anything else is matched against
registry names and descriptions. The registry description is validated,
translated into a runnable configuration, stored, and pinned in the lockfile.

Without a server name, every server declared in the project manifest is
installed: locked servers are restored from their lockfile snapshot after an
integrity check, everything else is resolved against the registry using the
manifest's version specifiers and pinned.`
}

func (c *InstallCmd) run(cobraCmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return c.runFromManifest(cobraCmd)
	}

	name, version := splitVersion(strings.TrimSpace(args[0]))
	if name == "" {
		return fmt.Errorf("server name is required and cannot be empty")
	}
	if c.Version != "" {
		version = c.Version
	}

	overrides, err := parseEnvPairs(c.Env)
	if err != nil {
		return err
	}

	logger := c.Logger()
	ctx := cobraCmd.Context()

	store, err := c.Context(c.Global, c.Local)
	if err != nil {
		return err
	}

	reg, err := c.RegistryClient()
	if err != nil {
		return err
	}
	res, err := c.Resolver(reg)
	if err != nil {
		return err
	}

	canonical, err := res.Resolve(ctx, name)
	if err != nil {
		logger.Warn("Name resolution failed", "name", name, "error", err)
		return fmt.Errorf("failed to resolve '%s': %w", name, err)
	}

	detail, err := reg.Server(ctx, canonical, version)
	if err != nil {
		return fmt.Errorf("failed to get '%s@%s' from registry: %w", canonical, displayVersion(version), err)
	}

	doc, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to encode registry description: %w", err)
	}
	if err := schema.ValidateDocument(doc); err != nil {
		return fmt.Errorf("registry description for '%s' failed validation: %w", canonical, err)
	}

	opts := []adapter.Option{adapter.WithLogger(logger), adapter.WithEnvOverrides(overrides)}
	if c.Alias != "" {
		opts = append(opts, adapter.WithAlias(c.Alias))
	}
	srv, err := adapter.Adapt(detail, opts...)
	if err != nil {
		return fmt.Errorf("cannot install '%s': %w", canonical, err)
	}

	spec := version
	if spec == "" || spec == semver.Latest {
		spec = detail.Version
	}
	addOpts := config.AddOptions{Force: c.Force, Dev: c.Dev, VersionSpec: spec}
	if err := store.AddServer(srv, addOpts); err != nil {
		if errors.Is(err, interrs.ErrServerExists) {
			return fmt.Errorf("%w (use --force to reinstall)", err)
		}
		return err
	}

	if err := store.Pin(srv.Name, schema.NewLockEntry(detail)); err != nil {
		return err
	}

	for _, group := range c.Groups {
		if err := c.addToGroup(store, srv.Name, group); err != nil {
			return err
		}
	}

	out := cobraCmd.OutOrStdout()
	if _, err := fmt.Fprintf(out, "✓ Installed '%s' (%s@%s)\n", srv.Name, canonical, detail.Version); err != nil {
		return err
	}
	logger.Debug("Server installed", "name", srv.Name, "registry", canonical, "version", detail.Version, "scope", store.Scope())

	if missing := adapter.MissingRequiredVars(srv); len(missing) > 0 {
		_, err = fmt.Fprintf(
			out,
			"⚠ Required environment variables are not set: %s\n  Set them with 'cpm config set %s KEY=VALUE'\n",
			strings.Join(missing, ", "), srv.Name,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// manifestReader is the slice of the local store the manifest install path
// needs beyond the shared Store interface.
type manifestReader interface {
	Manifest() (schema.Manifest, error)
}

// runFromManifest installs every server the project manifest declares,
// restoring locked servers from their lockfile snapshots.
func (c *InstallCmd) runFromManifest(cobraCmd *cobra.Command) error {
	logger := c.Logger()
	ctx := cobraCmd.Context()

	store, err := c.Context(c.Global, c.Local)
	if err != nil {
		return err
	}
	mr, ok := store.Store.(manifestReader)
	if !ok {
		return fmt.Errorf("no server name given and no project manifest to install from (run 'cpm init' first, or name a server)")
	}

	m, err := mr.Manifest()
	if err != nil {
		return err
	}

	out := cobraCmd.OutOrStdout()
	names := m.ServerNames()
	if len(names) == 0 {
		_, err = fmt.Fprintln(out, "No servers to install")
		return err
	}
	sort.Strings(names)

	lock, err := store.Lockfile()
	if err != nil {
		return err
	}

	reg, err := c.RegistryClient()
	if err != nil {
		return err
	}
	res, err := c.Resolver(reg)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(out, "Installing %d server(s) from %s\n", len(names), store.Path()); err != nil {
		return err
	}

	for _, name := range names {
		spec, _ := m.ServerVersion(name)

		detail, locked, err := c.resolveManifestEntry(ctx, reg, res, lock, name, spec)
		if err != nil {
			return fmt.Errorf("failed to install '%s': %w", name, err)
		}

		srv, err := adapter.Adapt(detail,
			adapter.WithLogger(logger),
			adapter.WithAlias(name),
			adapter.WithEnvOverrides(m.Config[name]),
		)
		if err != nil {
			return fmt.Errorf("cannot install '%s': %w", name, err)
		}

		_, dev := m.DevServers[name]
		if err := store.AddServer(srv, config.AddOptions{Force: true, Dev: dev, VersionSpec: spec}); err != nil {
			return err
		}
		if !locked {
			if err := store.Pin(name, schema.NewLockEntry(detail)); err != nil {
				return err
			}
		}

		if _, err := fmt.Fprintf(out, "  ✓ %s@%s\n", name, detail.Version); err != nil {
			return err
		}
		logger.Debug("Server installed from manifest", "name", name, "version", detail.Version, "locked", locked)
	}

	// Reinstalling rewrote each server file, so re-tag group members.
	for group, members := range m.Groups {
		for _, member := range members {
			if !m.HasServer(member) {
				continue
			}
			if err := store.AddServerToGroup(member, group); err != nil {
				return err
			}
		}
	}

	_, err = fmt.Fprintf(out, "✓ Installed %d server(s)\n", len(names))
	return err
}

// resolveManifestEntry returns the registry snapshot to install for a
// declared server, preferring the lockfile. The boolean reports whether the
// lock entry was reused as-is.
func (c *InstallCmd) resolveManifestEntry(
	ctx context.Context,
	reg *registry.Client,
	res *resolver.Resolver,
	lock schema.Lockfile,
	name, spec string,
) (schema.ServerDetail, bool, error) {
	entry, locked := lock.Servers[name]
	if locked {
		if !entry.Verify() {
			return schema.ServerDetail{}, false, fmt.Errorf(
				"lockfile integrity check failed for '%s' (recorded digest %s does not match the snapshot)",
				name, entry.Integrity,
			)
		}

		ok, err := specAllows(entry.Version, spec)
		if err != nil {
			return schema.ServerDetail{}, false, err
		}
		if ok {
			return entry.RegistryMetadata, true, nil
		}
	}

	// No usable lock entry: resolve against the registry. A stale entry
	// still knows the canonical name, which covers aliased installs.
	canonical := entry.Resolved
	if canonical == "" {
		var err error
		canonical, err = res.Resolve(ctx, name)
		if err != nil {
			return schema.ServerDetail{}, false, err
		}
	}

	detail, err := resolveSpec(ctx, reg, canonical, spec)

	return detail, false, err
}

// specAllows reports whether a locked version still satisfies the manifest
// specifier. The 'latest' specifier keeps whatever is locked.
func specAllows(version, spec string) (bool, error) {
	if spec == "" || spec == semver.Latest {
		return true, nil
	}

	return semver.Satisfies(version, spec)
}

// resolveSpec fetches the registry snapshot matching a manifest specifier:
// exact versions directly, ranges by trying known versions highest first.
func resolveSpec(ctx context.Context, reg *registry.Client, canonical, spec string) (schema.ServerDetail, error) {
	if spec == "" || spec == semver.Latest {
		return reg.Server(ctx, canonical, "")
	}
	if v, err := semver.Parse(spec); err == nil && !v.IsSentinel() {
		return reg.Server(ctx, canonical, spec)
	}

	versions, err := reg.Versions(ctx, canonical)
	if err != nil {
		return schema.ServerDetail{}, err
	}
	for _, v := range versions {
		ok, err := semver.Satisfies(v, spec)
		if err != nil {
			return schema.ServerDetail{}, err
		}
		if ok {
			return reg.Server(ctx, canonical, v)
		}
	}

	return schema.ServerDetail{}, fmt.Errorf(
		"%w: no version of %s satisfies %q", interrs.ErrVersionNotFound, canonical, spec,
	)
}

// addToGroup tags the server with a group, creating the group on first use.
func (c *InstallCmd) addToGroup(store *config.Context, server, group string) error {
	group = schema.StripGroupPrefix(group)

	if err := store.CreateGroup(group, ""); err != nil && !errors.Is(err, interrs.ErrGroupExists) {
		return err
	}

	return store.AddServerToGroup(server, group)
}

// splitVersion separates an optional @version suffix from a server name.
// Registry names never contain '@', so the first one marks the version.
func splitVersion(arg string) (string, string) {
	if i := strings.Index(arg, "@"); i > 0 {
		return arg[:i], arg[i+1:]
	}

	return arg, ""
}

func displayVersion(version string) string {
	if version == "" {
		return semver.Latest
	}

	return version
}

// parseEnvPairs parses repeated KEY=VALUE flags into a map.
func parseEnvPairs(pairs []string) (map[string]string, error) {
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid --env value %q, expected KEY=VALUE", pair)
		}
		env[strings.TrimSpace(key)] = value
	}

	return env, nil
}
