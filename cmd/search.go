package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cpm-sh/cpm/internal/cmd"
)

type SearchCmd struct {
	*cmd.BaseCmd
	Version      string
	Status       string
	Transport    string
	RegistryType string
}

func NewSearchCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &SearchCmd{BaseCmd: baseCmd}

	cobraCommand := &cobra.Command{
		Use:   "search <query>",
		Short: "Searches the registry for matching MCP servers.",
		Long: `Searches the registry for MCP servers whose name or description matches the
query, optionally narrowed by metadata filters.`,
		Args: cobra.ExactArgs(1),
		RunE: c.run,
	}

	cobraCommand.Flags().StringVar(
		&c.Version,
		"version",
		"",
		"Optional, only match servers with this exact version",
	)

	cobraCommand.Flags().StringVar(
		&c.Status,
		"status",
		"",
		"Optional, only match servers with this status (e.g. active, deprecated)",
	)

	cobraCommand.Flags().StringVar(
		&c.Transport,
		"transport",
		"",
		"Optional, only match servers supporting this transport (stdio, streamable-http, sse)",
	)

	cobraCommand.Flags().StringVar(
		&c.RegistryType,
		"registry-type",
		"",
		"Optional, only match servers installable from this package registry (npm, pypi, oci, nuget, mcpb)",
	)

	return cobraCommand, nil
}

func (c *SearchCmd) filters() map[string]string {
	f := make(map[string]string)

	if c.Version != "" {
		f["version"] = c.Version
	}
	if c.Status != "" {
		f["status"] = c.Status
	}
	if c.Transport != "" {
		f["transport"] = c.Transport
	}
	if c.RegistryType != "" {
		f["registry-type"] = c.RegistryType
	}

	return f
}

func (c *SearchCmd) run(cobraCmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(args[0])
	if query == "" {
		return fmt.Errorf("query is required and cannot be empty")
	}

	reg, err := c.RegistryClient()
	if err != nil {
		return err
	}

	results, err := reg.Search(cobraCmd.Context(), query, c.filters())
	if err != nil {
		return err
	}

	out := cobraCmd.OutOrStdout()
	if len(results) == 0 {
		_, err = fmt.Fprintln(out, "No results found")
		return err
	}

	for _, record := range results {
		srv := record.Server
		if _, err := fmt.Fprintf(out, "%s@%s\n", srv.Name, srv.Version); err != nil {
			return err
		}
		if srv.Description != "" {
			if _, err := fmt.Fprintf(out, "    %s\n", srv.Description); err != nil {
				return err
			}
		}
	}

	return nil
}
