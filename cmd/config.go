package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cpm-sh/cpm/internal/cmd"
	"github.com/cpm-sh/cpm/internal/flags"
)

// ConfigCmd groups the per-server environment configuration subcommands.
// The store replaces the whole env map on update, so every subcommand here
// reads the current map, applies its change, and writes the result back.
type ConfigCmd struct {
	*cmd.BaseCmd
	Global bool
	Local  bool
}

func NewConfigCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &ConfigCmd{BaseCmd: baseCmd}

	cobraCommand := &cobra.Command{
		Use:   "config",
		Short: "Manages environment configuration for installed servers.",
	}

	flags.AddScopeFlags(cobraCommand.PersistentFlags(), &c.Global, &c.Local)

	cobraCommand.AddCommand(
		&cobra.Command{
			Use:   "set <server-name> <KEY=VALUE>...",
			Short: "Sets environment variables on a server.",
			Args:  cobra.MinimumNArgs(2),
			RunE:  c.runSet,
		},
		&cobra.Command{
			Use:   "get <server-name> <KEY>",
			Short: "Prints one environment variable of a server.",
			Args:  cobra.ExactArgs(2),
			RunE:  c.runGet,
		},
		&cobra.Command{
			Use:   "unset <server-name> <KEY>...",
			Short: "Removes environment variables from a server.",
			Args:  cobra.MinimumNArgs(2),
			RunE:  c.runUnset,
		},
		&cobra.Command{
			Use:     "list <server-name>",
			Aliases: []string{"ls"},
			Short:   "Lists the environment variables of a server.",
			Args:    cobra.ExactArgs(1),
			RunE:    c.runList,
		},
	)

	return cobraCommand, nil
}

func (c *ConfigCmd) runSet(cobraCmd *cobra.Command, args []string) error {
	name := args[0]
	updates, err := parseEnvPairs(args[1:])
	if err != nil {
		return err
	}

	store, err := c.Context(c.Global, c.Local)
	if err != nil {
		return err
	}

	srv, err := store.Server(name)
	if err != nil {
		return err
	}

	env := make(map[string]string, len(srv.Env)+len(updates))
	for k, v := range srv.Env {
		env[k] = v
	}
	for k, v := range updates {
		env[k] = v
	}

	if err := store.UpdateServerEnv(name, env); err != nil {
		return err
	}

	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	_, err = fmt.Fprintf(cobraCmd.OutOrStdout(), "✓ Set %s on '%s'\n", strings.Join(keys, ", "), name)

	return err
}

func (c *ConfigCmd) runGet(cobraCmd *cobra.Command, args []string) error {
	name, key := args[0], args[1]

	store, err := c.Context(c.Global, c.Local)
	if err != nil {
		return err
	}

	srv, err := store.Server(name)
	if err != nil {
		return err
	}

	value, ok := srv.Env[key]
	if !ok {
		return fmt.Errorf("variable %q is not set on '%s'", key, name)
	}
	_, err = fmt.Fprintln(cobraCmd.OutOrStdout(), value)

	return err
}

func (c *ConfigCmd) runUnset(cobraCmd *cobra.Command, args []string) error {
	name, keys := args[0], args[1:]

	store, err := c.Context(c.Global, c.Local)
	if err != nil {
		return err
	}

	srv, err := store.Server(name)
	if err != nil {
		return err
	}

	env := make(map[string]string, len(srv.Env))
	for k, v := range srv.Env {
		env[k] = v
	}
	for _, key := range keys {
		delete(env, key)
	}

	if err := store.UpdateServerEnv(name, env); err != nil {
		return err
	}

	_, err = fmt.Fprintf(cobraCmd.OutOrStdout(), "✓ Unset %s on '%s'\n", strings.Join(keys, ", "), name)

	return err
}

func (c *ConfigCmd) runList(cobraCmd *cobra.Command, args []string) error {
	name := args[0]

	store, err := c.Context(c.Global, c.Local)
	if err != nil {
		return err
	}

	srv, err := store.Server(name)
	if err != nil {
		return err
	}

	out := cobraCmd.OutOrStdout()
	if len(srv.Env) == 0 {
		_, err = fmt.Fprintf(out, "No variables configured on '%s'\n", name)
		return err
	}

	keys := make([]string, 0, len(srv.Env))
	for k := range srv.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, err := fmt.Fprintf(out, "%s=%s\n", k, srv.Env[k]); err != nil {
			return err
		}
	}

	return nil
}
