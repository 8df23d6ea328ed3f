package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cpm-sh/cpm/internal/client"
	"github.com/cpm-sh/cpm/internal/cmd"
	interrs "github.com/cpm-sh/cpm/internal/errors"
	"github.com/cpm-sh/cpm/internal/flags"
	"github.com/cpm-sh/cpm/internal/schema"
)

type SyncCmd struct {
	*cmd.BaseCmd
	Clients []string
	Group   string
	Global  bool
	Local   bool
}

// syncResult is the outcome of pushing servers into one client config.
type syncResult struct {
	client  string
	pushed  []string
	skipped []string
}

func NewSyncCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &SyncCmd{BaseCmd: baseCmd}

	cobraCommand := &cobra.Command{
		Use:   "sync",
		Short: "Pushes installed servers into MCP client configs.",
		Long:  c.longDescription(),
		Args:  cobra.NoArgs,
		RunE:  c.run,
	}

	cobraCommand.Flags().StringArrayVar(
		&c.Clients,
		"client",
		nil,
		fmt.Sprintf("Optional, client to sync (can be repeated; one of: %s)", strings.Join(client.Names(), ", ")),
	)

	cobraCommand.Flags().StringVar(
		&c.Group,
		"group",
		"",
		"Optional, only sync servers belonging to this group",
	)

	flags.AddScopeFlags(cobraCommand.Flags(), &c.Global, &c.Local)

	return cobraCommand, nil
}

func (c *SyncCmd) longDescription() string {
	return `Pushes installed servers into the config files of MCP clients. Without
--client the sync targets come from the settings file, falling back to every
client detected on this machine. Servers a client cannot represent are
reported and skipped, never silently dropped.`
}

func (c *SyncCmd) run(cobraCmd *cobra.Command, _ []string) error {
	logger := c.Logger()

	store, err := c.Context(c.Global, c.Local)
	if err != nil {
		return err
	}

	servers, err := c.servers(store)
	if err != nil {
		return err
	}
	if len(servers) == 0 {
		_, err = fmt.Fprintln(cobraCmd.OutOrStdout(), "No servers to sync")
		return err
	}

	managers, err := c.targets()
	if err != nil {
		return err
	}
	if len(managers) == 0 {
		_, err = fmt.Fprintln(cobraCmd.OutOrStdout(), "No sync targets found")
		return err
	}

	// Each client owns a distinct config file, so pushes run concurrently.
	results := make([]syncResult, len(managers))
	var g errgroup.Group
	for i, m := range managers {
		g.Go(func() error {
			result := syncResult{client: m.Key()}
			for _, srv := range servers {
				if err := m.AddServer(srv); err != nil {
					if errors.Is(err, interrs.ErrUnsupportedServer) {
						logger.Warn("Client cannot represent server", "client", m.Key(), "server", srv.Name)
						result.skipped = append(result.skipped, srv.Name)
						continue
					}
					return fmt.Errorf("failed to sync '%s' to %s: %w", srv.Name, m.Key(), err)
				}
				result.pushed = append(result.pushed, srv.Name)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cobraCmd.OutOrStdout()
	for _, result := range results {
		if _, err := fmt.Fprintf(
			out, "✓ %s: %d server(s) synced\n", result.client, len(result.pushed),
		); err != nil {
			return err
		}
		for _, name := range result.skipped {
			if _, err := fmt.Fprintf(out, "  ⚠ skipped '%s' (not supported by this client)\n", name); err != nil {
				return err
			}
		}
	}

	return nil
}

// servers collects the sync payload in stable name order.
func (c *SyncCmd) servers(store configStore) ([]schema.RuntimeServer, error) {
	if c.Group != "" {
		return store.GroupServers(schema.StripGroupPrefix(c.Group))
	}

	byName, err := store.Servers()
	if err != nil {
		return nil, err
	}

	servers := make([]schema.RuntimeServer, 0, len(byName))
	for _, srv := range byName {
		servers = append(servers, srv)
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].Name < servers[j].Name })

	return servers, nil
}

// configStore is the slice of the store surface sync needs.
type configStore interface {
	Servers() (map[string]schema.RuntimeServer, error)
	GroupServers(group string) ([]schema.RuntimeServer, error)
}

// targets selects the client managers to sync into: explicit --client flags,
// then the settings file list, then every installed client.
func (c *SyncCmd) targets() ([]client.Manager, error) {
	logger := c.Logger()

	keys := c.Clients
	if len(keys) == 0 {
		keys = c.Settings().SyncClients
	}

	if len(keys) == 0 {
		managers, err := client.All(logger)
		if err != nil {
			return nil, err
		}
		installed := make([]client.Manager, 0, len(managers))
		for _, m := range managers {
			if m.Installed() {
				installed = append(installed, m)
			}
		}
		return installed, nil
	}

	managers := make([]client.Manager, 0, len(keys))
	for _, key := range keys {
		m, err := client.New(logger, key, "")
		if err != nil {
			return nil, err
		}
		managers = append(managers, m)
	}

	return managers, nil
}
