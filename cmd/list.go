package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cpm-sh/cpm/internal/cmd"
	"github.com/cpm-sh/cpm/internal/flags"
	"github.com/cpm-sh/cpm/internal/schema"
)

type ListCmd struct {
	*cmd.BaseCmd
	Group  string
	Global bool
	Local  bool
}

func NewListCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &ListCmd{BaseCmd: baseCmd}

	cobraCommand := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Lists installed MCP servers.",
		Args:    cobra.NoArgs,
		RunE:    c.run,
	}

	cobraCommand.Flags().StringVar(
		&c.Group,
		"group",
		"",
		"Optional, only list servers belonging to this group",
	)

	flags.AddScopeFlags(cobraCommand.Flags(), &c.Global, &c.Local)

	return cobraCommand, nil
}

func (c *ListCmd) run(cobraCmd *cobra.Command, _ []string) error {
	store, err := c.Context(c.Global, c.Local)
	if err != nil {
		return err
	}

	var servers []schema.RuntimeServer
	if c.Group != "" {
		servers, err = store.GroupServers(schema.StripGroupPrefix(c.Group))
		if err != nil {
			return err
		}
	} else {
		byName, err := store.Servers()
		if err != nil {
			return err
		}
		for _, srv := range byName {
			servers = append(servers, srv)
		}
		sort.Slice(servers, func(i, j int) bool { return servers[i].Name < servers[j].Name })
	}

	out := cobraCmd.OutOrStdout()
	if len(servers) == 0 {
		_, err = fmt.Fprintln(out, "No servers installed")
		return err
	}

	if _, err := fmt.Fprintf(out, "Installed servers (%s scope):\n", store.Scope()); err != nil {
		return err
	}

	for _, srv := range servers {
		line := fmt.Sprintf("  %s", srv.Name)
		if version, ok := store.Version(srv.Name); ok {
			line += fmt.Sprintf("@%s", version)
		}
		line += fmt.Sprintf("  [%s]", srv.InstallMethod)
		if len(srv.Groups) > 0 {
			tagged := make([]string, len(srv.Groups))
			for i, g := range srv.Groups {
				tagged[i] = "@" + g
			}
			line += "  " + strings.Join(tagged, " ")
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}

	return nil
}
