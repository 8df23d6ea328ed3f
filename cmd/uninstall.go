package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cpm-sh/cpm/internal/cmd"
	"github.com/cpm-sh/cpm/internal/flags"
)

type UninstallCmd struct {
	*cmd.BaseCmd
	Global bool
	Local  bool
}

func NewUninstallCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &UninstallCmd{BaseCmd: baseCmd}

	cobraCommand := &cobra.Command{
		Use:     "uninstall <server-name>",
		Aliases: []string{"remove", "rm"},
		Short:   "Removes an installed MCP server.",
		Long: `Removes an installed MCP server from the selected scope, including its
group memberships and lockfile entry.`,
		Args: cobra.ExactArgs(1),
		RunE: c.run,
	}

	flags.AddScopeFlags(cobraCommand.Flags(), &c.Global, &c.Local)

	return cobraCommand, nil
}

func (c *UninstallCmd) run(cobraCmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	if name == "" {
		return fmt.Errorf("server name is required and cannot be empty")
	}

	store, err := c.Context(c.Global, c.Local)
	if err != nil {
		return err
	}

	if err := store.RemoveServer(name); err != nil {
		return err
	}

	c.Logger().Debug("Server removed", "name", name, "scope", store.Scope())
	_, err = fmt.Fprintf(cobraCmd.OutOrStdout(), "✓ Removed '%s'\n", name)

	return err
}
