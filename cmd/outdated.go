package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cpm-sh/cpm/internal/cmd"
	"github.com/cpm-sh/cpm/internal/flags"
	"github.com/cpm-sh/cpm/internal/semver"
)

// OutdatedCmd should be used to represent the 'outdated' command.
type OutdatedCmd struct {
	*cmd.BaseCmd
	Global bool
	Local  bool
}

func NewOutdatedCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &OutdatedCmd{BaseCmd: baseCmd}

	cobraCommand := &cobra.Command{
		Use:   "outdated",
		Short: "Shows installed servers with newer registry versions.",
		Long: `Checks every installed server against the registry and lists the ones with
newer versions available. The wanted column is the highest version still
matching the manifest's version specifier; latest ignores the specifier.`,
		Args: cobra.NoArgs,
		RunE: c.run,
	}

	flags.AddScopeFlags(cobraCommand.Flags(), &c.Global, &c.Local)

	return cobraCommand, nil
}

func (c *OutdatedCmd) run(cobraCmd *cobra.Command, _ []string) error {
	logger := c.Logger()
	ctx := cobraCmd.Context()

	store, err := c.Context(c.Global, c.Local)
	if err != nil {
		return err
	}

	servers, err := store.Servers()
	if err != nil {
		return err
	}

	out := cobraCmd.OutOrStdout()
	if len(servers) == 0 {
		_, err = fmt.Fprintln(out, "No servers installed")
		return err
	}

	lock, err := store.Lockfile()
	if err != nil {
		return err
	}

	reg, err := c.RegistryClient()
	if err != nil {
		return err
	}

	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	if _, err := fmt.Fprintf(out, "Checking %d server(s) for updates...\n", len(names)); err != nil {
		return err
	}

	outdated := 0
	for _, name := range names {
		entry, ok := lock.Servers[name]
		current := entry.Version
		canonical := entry.Resolved
		if canonical == "" {
			canonical = servers[name].RegistryName
		}
		if !ok || current == "" || canonical == "" {
			logger.Debug("Skipping server without version provenance", "server", name)
			continue
		}

		versions, err := reg.Versions(ctx, canonical)
		if err != nil {
			if _, werr := fmt.Fprintf(out, "  ⚠ %s: failed to check: %v\n", name, err); werr != nil {
				return werr
			}
			continue
		}

		latest := semver.LatestOf(versions)
		if latest == "" || latest == current {
			continue
		}

		spec, ok := store.Version(name)
		if !ok || spec == "" {
			spec = semver.Latest
		}

		// Versions come back highest first, so the first match wins.
		wanted := current
		for _, v := range versions {
			if ok, err := semver.Satisfies(v, spec); err == nil && ok {
				wanted = v
				break
			}
		}

		outdated++
		if _, err := fmt.Fprintf(out, "  %s  %s -> %s  (latest %s)\n", name, current, wanted, latest); err != nil {
			return err
		}
	}

	if outdated == 0 {
		_, err = fmt.Fprintln(out, "✓ All servers are up to date")
		return err
	}

	_, err = fmt.Fprintf(out, "\n%d server(s) outdated, run 'cpm install <server>@<version> --force' to update\n", outdated)
	return err
}
