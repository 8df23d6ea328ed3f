package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cpm-sh/cpm/internal/cmd"
	interrs "github.com/cpm-sh/cpm/internal/errors"
	"github.com/cpm-sh/cpm/internal/flags"
	"github.com/cpm-sh/cpm/internal/schema"
)

// GroupCmd groups the server-tagging subcommands. Group arguments accept the
// '@' display prefix, which is stripped before lookup.
type GroupCmd struct {
	*cmd.BaseCmd
	Description string
	Global      bool
	Local       bool
}

func NewGroupCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &GroupCmd{BaseCmd: baseCmd}

	cobraCommand := &cobra.Command{
		Use:   "group",
		Short: "Manages server groups.",
	}

	flags.AddScopeFlags(cobraCommand.PersistentFlags(), &c.Global, &c.Local)

	createCmd := &cobra.Command{
		Use:   "create <@group>",
		Short: "Creates a new group.",
		Args:  cobra.ExactArgs(1),
		RunE:  c.runCreate,
	}
	createCmd.Flags().StringVar(
		&c.Description,
		"description",
		"",
		"Optional, a description of the group",
	)

	cobraCommand.AddCommand(
		createCmd,
		&cobra.Command{
			Use:   "rm <@group>",
			Short: "Deletes a group, leaving its servers installed.",
			Args:  cobra.ExactArgs(1),
			RunE:  c.runDelete,
		},
		&cobra.Command{
			Use:   "rename <@old> <@new>",
			Short: "Renames a group, retagging its servers.",
			Args:  cobra.ExactArgs(2),
			RunE:  c.runRename,
		},
		&cobra.Command{
			Use:   "add <@group> <server-name>",
			Short: "Adds a server to a group, creating the group if needed.",
			Args:  cobra.ExactArgs(2),
			RunE:  c.runAdd,
		},
		&cobra.Command{
			Use:   "remove <@group> <server-name>",
			Short: "Removes a server from a group.",
			Args:  cobra.ExactArgs(2),
			RunE:  c.runRemove,
		},
		&cobra.Command{
			Use:     "list",
			Aliases: []string{"ls"},
			Short:   "Lists groups and their servers.",
			Args:    cobra.NoArgs,
			RunE:    c.runList,
		},
	)

	return cobraCommand, nil
}

func (c *GroupCmd) runCreate(cobraCmd *cobra.Command, args []string) error {
	group := schema.StripGroupPrefix(args[0])

	store, err := c.Context(c.Global, c.Local)
	if err != nil {
		return err
	}

	if err := store.CreateGroup(group, c.Description); err != nil {
		return err
	}

	_, err = fmt.Fprintf(cobraCmd.OutOrStdout(), "✓ Created group '@%s'\n", group)

	return err
}

func (c *GroupCmd) runDelete(cobraCmd *cobra.Command, args []string) error {
	group := schema.StripGroupPrefix(args[0])

	store, err := c.Context(c.Global, c.Local)
	if err != nil {
		return err
	}

	if err := store.DeleteGroup(group); err != nil {
		return err
	}

	_, err = fmt.Fprintf(cobraCmd.OutOrStdout(), "✓ Deleted group '@%s' (servers remain installed)\n", group)

	return err
}

func (c *GroupCmd) runRename(cobraCmd *cobra.Command, args []string) error {
	oldName := schema.StripGroupPrefix(args[0])
	newName := schema.StripGroupPrefix(args[1])

	store, err := c.Context(c.Global, c.Local)
	if err != nil {
		return err
	}

	if err := store.RenameGroup(oldName, newName); err != nil {
		return err
	}

	_, err = fmt.Fprintf(cobraCmd.OutOrStdout(), "✓ Renamed group '@%s' to '@%s'\n", oldName, newName)

	return err
}

func (c *GroupCmd) runAdd(cobraCmd *cobra.Command, args []string) error {
	group := schema.StripGroupPrefix(args[0])
	server := strings.TrimSpace(args[1])

	store, err := c.Context(c.Global, c.Local)
	if err != nil {
		return err
	}

	// A group referenced by add is created on first use.
	if err := store.CreateGroup(group, ""); err != nil && !errors.Is(err, interrs.ErrGroupExists) {
		return err
	}

	if err := store.AddServerToGroup(server, group); err != nil {
		return err
	}

	_, err = fmt.Fprintf(cobraCmd.OutOrStdout(), "✓ Added '%s' to group '@%s'\n", server, group)

	return err
}

func (c *GroupCmd) runRemove(cobraCmd *cobra.Command, args []string) error {
	group := schema.StripGroupPrefix(args[0])
	server := strings.TrimSpace(args[1])

	store, err := c.Context(c.Global, c.Local)
	if err != nil {
		return err
	}

	if err := store.RemoveServerFromGroup(server, group); err != nil {
		return err
	}

	_, err = fmt.Fprintf(cobraCmd.OutOrStdout(), "✓ Removed '%s' from group '@%s'\n", server, group)

	return err
}

func (c *GroupCmd) runList(cobraCmd *cobra.Command, _ []string) error {
	store, err := c.Context(c.Global, c.Local)
	if err != nil {
		return err
	}

	groups, err := store.Groups()
	if err != nil {
		return err
	}

	out := cobraCmd.OutOrStdout()
	if len(groups) == 0 {
		_, err = fmt.Fprintln(out, "No groups defined")
		return err
	}

	for _, group := range groups {
		line := "@" + group.Name
		if group.Description != "" {
			line += "  " + group.Description
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}

		servers, err := store.GroupServers(group.Name)
		if err != nil {
			return err
		}
		for _, srv := range servers {
			if _, err := fmt.Fprintf(out, "  %s\n", srv.Name); err != nil {
				return err
			}
		}
	}

	return nil
}
