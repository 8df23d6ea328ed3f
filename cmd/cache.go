package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cpm-sh/cpm/internal/cmd"
)

type CacheCmd struct {
	*cmd.BaseCmd
}

func NewCacheCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &CacheCmd{BaseCmd: baseCmd}

	cobraCommand := &cobra.Command{
		Use:   "cache",
		Short: "Manages the registry and name-resolution caches.",
	}

	cobraCommand.AddCommand(
		&cobra.Command{
			Use:   "refresh",
			Short: "Re-fetches the registry listing, replacing the cache.",
			Args:  cobra.NoArgs,
			RunE:  c.runRefresh,
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Deletes the registry and name-resolution caches.",
			Args:  cobra.NoArgs,
			RunE:  c.runClear,
		},
	)

	return cobraCommand, nil
}

func (c *CacheCmd) runRefresh(cobraCmd *cobra.Command, _ []string) error {
	reg, err := c.RegistryClient()
	if err != nil {
		return err
	}

	if err := reg.RefreshCache(cobraCmd.Context()); err != nil {
		return fmt.Errorf("failed to refresh registry cache: %w", err)
	}

	_, err = fmt.Fprintln(cobraCmd.OutOrStdout(), "✓ Registry cache refreshed")

	return err
}

func (c *CacheCmd) runClear(cobraCmd *cobra.Command, _ []string) error {
	reg, err := c.RegistryClient()
	if err != nil {
		return err
	}
	if err := reg.ClearCache(); err != nil {
		return fmt.Errorf("failed to clear registry cache: %w", err)
	}

	res, err := c.Resolver(reg)
	if err != nil {
		return err
	}
	if err := res.ClearCache(); err != nil {
		return err
	}

	_, err = fmt.Fprintln(cobraCmd.OutOrStdout(), "✓ Caches cleared")

	return err
}
