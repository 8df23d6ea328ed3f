package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cpm-sh/cpm/internal/cmd"
	"github.com/cpm-sh/cpm/internal/config"
	"github.com/cpm-sh/cpm/internal/semver"
)

// VersionCmd should be used to represent the 'version' command.
type VersionCmd struct {
	*cmd.BaseCmd
}

func NewVersionCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &VersionCmd{BaseCmd: baseCmd}

	cobraCommand := &cobra.Command{
		Use:   "version [<new-version> | major | minor | patch]",
		Short: "Shows tool and project versions, or bumps the project version.",
		Long: `Without arguments, prints the cpm version and, inside a project, the
project's name and manifest version.

With an argument, rewrites the project manifest's version: an exact version
sets it directly, while 'major', 'minor' or 'patch' bumps that component.`,
		Args: cobra.MaximumNArgs(1),
		RunE: c.run,
	}

	return cobraCommand, nil
}

func (c *VersionCmd) run(cobraCmd *cobra.Command, args []string) error {
	out := cobraCmd.OutOrStdout()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to determine working directory: %w", err)
	}

	if len(args) == 0 {
		if _, err := fmt.Fprintf(out, "cpm %s\n", version); err != nil {
			return err
		}
		if !config.HasProject(cwd) {
			return nil
		}

		store, err := config.NewLocalStore(c.Logger(), cwd)
		if err != nil {
			return err
		}
		m, err := store.Manifest()
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(out, "%s %s\n", m.Name, m.Version)
		return err
	}

	if !config.HasProject(cwd) {
		return fmt.Errorf("no project manifest in %s (run 'cpm init' first)", cwd)
	}

	store, err := config.NewLocalStore(c.Logger(), cwd)
	if err != nil {
		return err
	}
	m, err := store.Manifest()
	if err != nil {
		return err
	}

	next, err := nextVersion(m.Version, args[0])
	if err != nil {
		return err
	}
	if err := store.SetProjectVersion(next); err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "✓ %s %s -> %s\n", m.Name, m.Version, next)
	return err
}

// nextVersion interprets the argument as a bump level or an exact version.
func nextVersion(current, arg string) (string, error) {
	switch arg {
	case semver.BumpMajor, semver.BumpMinor, semver.BumpPatch:
		return semver.Bump(current, arg)
	}

	v, err := semver.Parse(arg)
	if err != nil {
		return "", err
	}
	if v.IsSentinel() {
		return "", fmt.Errorf("project version must be a concrete version, got %q", arg)
	}

	return v.String(), nil
}
