package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cpm-sh/cpm/internal/cmd"
)

type InfoCmd struct {
	*cmd.BaseCmd
	Version     string
	AllVersions bool
}

func NewInfoCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &InfoCmd{BaseCmd: baseCmd}

	cobraCommand := &cobra.Command{
		Use:   "info <server-name>[@version]",
		Short: "Shows registry details for an MCP server.",
		Args:  cobra.ExactArgs(1),
		RunE:  c.run,
	}

	cobraCommand.Flags().StringVar(
		&c.Version,
		"version",
		"",
		"Specify the version to describe (defaults to latest)",
	)

	cobraCommand.Flags().BoolVar(
		&c.AllVersions,
		"versions",
		false,
		"List every known version instead of describing one",
	)

	return cobraCommand, nil
}

func (c *InfoCmd) run(cobraCmd *cobra.Command, args []string) error {
	name, version := splitVersion(strings.TrimSpace(args[0]))
	if name == "" {
		return fmt.Errorf("server name is required and cannot be empty")
	}
	if c.Version != "" {
		version = c.Version
	}

	ctx := cobraCmd.Context()
	out := cobraCmd.OutOrStdout()

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
		return fmt.Errorf("failed to resolve '%s': %w", name, err)
	}

	if c.AllVersions {
		versions, err := reg.Versions(ctx, canonical)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(out, "%s versions:\n", canonical); err != nil {
			return err
		}
		for _, v := range versions {
			if _, err := fmt.Fprintf(out, "  %s\n", v); err != nil {
				return err
			}
		}
		return nil
	}

	detail, err := reg.Server(ctx, canonical, version)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(out, "%s@%s\n", detail.Name, detail.Version); err != nil {
		return err
	}
	if detail.Description != "" {
		if _, err := fmt.Fprintf(out, "  %s\n", detail.Description); err != nil {
			return err
		}
	}
	if detail.Status != "" {
		if _, err := fmt.Fprintf(out, "  status: %s\n", detail.Status); err != nil {
			return err
		}
	}
	if detail.Repository != nil && detail.Repository.URL != "" {
		if _, err := fmt.Fprintf(out, "  repository: %s\n", detail.Repository.URL); err != nil {
			return err
		}
	}

	for _, pkg := range detail.Packages {
		line := fmt.Sprintf("  package: %s %s (%s)", pkg.RegistryType, pkg.Identifier, pkg.Transport.Type)
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
		for _, env := range pkg.EnvironmentVariables {
			attrs := make([]string, 0, 2)
			if env.IsRequired {
				attrs = append(attrs, "required")
			}
			if env.IsSecret {
				attrs = append(attrs, "secret")
			}
			suffix := ""
			if len(attrs) > 0 {
				suffix = " (" + strings.Join(attrs, ", ") + ")"
			}
			if _, err := fmt.Fprintf(out, "    env: %s%s\n", env.Name, suffix); err != nil {
				return err
			}
		}
	}

	for _, remote := range detail.Remotes {
		if _, err := fmt.Fprintf(out, "  remote: %s %s\n", remote.Type, remote.URL); err != nil {
			return err
		}
	}

	return nil
}
