package cmd

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cpm-sh/cpm/internal/client"
	"github.com/cpm-sh/cpm/internal/cmd"
	"github.com/cpm-sh/cpm/internal/settings"
)

// Keys accepted by 'settings get' and 'settings set'.
const (
	settingRegistryURL = "registry-url"
	settingCacheTTL    = "cache-ttl"
	settingSyncClients = "sync-clients"
)

// SettingsCmd should be used to represent the 'settings' command.
type SettingsCmd struct {
	*cmd.BaseCmd
}

func NewSettingsCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &SettingsCmd{BaseCmd: baseCmd}

	cobraCommand := &cobra.Command{
		Use:   "settings <command>",
		Short: "Manages the user settings file.",
		Long: `Reads and writes the user settings file (config.toml in the user config
directory). Supported keys:

  registry-url   registry endpoint used when no --registry-url flag is given
  cache-ttl      registry cache time-to-live, as a Go duration ("1h", "30m")
  sync-clients   comma-separated client names 'cpm sync' targets by default

Setting a key to an empty value clears it.`,
	}

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Prints one setting value.",
		Args:  cobra.ExactArgs(1),
		RunE:  c.runGet,
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Writes one setting value.",
		Args:  cobra.ExactArgs(2),
		RunE:  c.runSet,
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Prints every setting.",
		Args:    cobra.NoArgs,
		RunE:    c.runList,
	}

	cobraCommand.AddCommand(get, set, list)

	return cobraCommand, nil
}

func (c *SettingsCmd) runGet(cobraCmd *cobra.Command, args []string) error {
	s, err := settings.Load("")
	if err != nil {
		return err
	}

	value, err := settingValue(s, args[0])
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cobraCmd.OutOrStdout(), value)
	return err
}

func (c *SettingsCmd) runSet(cobraCmd *cobra.Command, args []string) error {
	key, value := args[0], strings.TrimSpace(args[1])

	s, err := settings.Load("")
	if err != nil {
		return err
	}

	switch key {
	case settingRegistryURL:
		s.RegistryURL = value
	case settingCacheTTL:
		if value != "" {
			if _, err := time.ParseDuration(value); err != nil {
				return fmt.Errorf("invalid cache-ttl %q: %w", value, err)
			}
		}
		s.CacheTTL = value
	case settingSyncClients:
		names, err := parseClientList(value)
		if err != nil {
			return err
		}
		s.SyncClients = names
	default:
		return unknownSettingError(key)
	}

	if err := s.Save(); err != nil {
		return err
	}

	_, err = fmt.Fprintf(cobraCmd.OutOrStdout(), "✓ Set %s\n", key)
	return err
}

func (c *SettingsCmd) runList(cobraCmd *cobra.Command, _ []string) error {
	s, err := settings.Load("")
	if err != nil {
		return err
	}
	path, err := settings.DefaultPath()
	if err != nil {
		return err
	}

	out := cobraCmd.OutOrStdout()
	for _, key := range []string{settingRegistryURL, settingCacheTTL, settingSyncClients} {
		value, err := settingValue(s, key)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(out, "%s = %s\n", key, value); err != nil {
			return err
		}
	}

	_, err = fmt.Fprintf(out, "\nSettings file: %s\n", path)
	return err
}

func settingValue(s settings.Settings, key string) (string, error) {
	switch key {
	case settingRegistryURL:
		return s.RegistryURL, nil
	case settingCacheTTL:
		return s.CacheTTL, nil
	case settingSyncClients:
		return strings.Join(s.SyncClients, ","), nil
	default:
		return "", unknownSettingError(key)
	}
}

func unknownSettingError(key string) error {
	return fmt.Errorf("unknown setting %q (want %s, %s, or %s)",
		key, settingRegistryURL, settingCacheTTL, settingSyncClients)
}

// parseClientList splits a comma-separated client list and rejects names no
// client manager answers to. An empty value clears the list.
func parseClientList(value string) ([]string, error) {
	if value == "" {
		return nil, nil
	}

	known := client.Names()
	names := make([]string, 0, 2)
	for _, name := range strings.Split(value, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !slices.Contains(known, name) {
			return nil, fmt.Errorf("unknown client %q (known: %s)", name, strings.Join(known, ", "))
		}
		names = append(names, name)
	}

	return names, nil
}
