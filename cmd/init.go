package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cpm-sh/cpm/internal/cmd"
	"github.com/cpm-sh/cpm/internal/config"
)

type InitCmd struct {
	*cmd.BaseCmd
	ProjectVersion string
}

func NewInitCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &InitCmd{BaseCmd: baseCmd}

	cobraCommand := &cobra.Command{
		Use:   "init [project-name]",
		Short: "Initializes the current directory as a cpm project.",
		Long:  c.longDescription(),
		Args:  cobra.MaximumNArgs(1),
		RunE:  c.run,
	}

	cobraCommand.Flags().StringVar(
		&c.ProjectVersion,
		"project-version",
		"",
		"Optional, version recorded in the project manifest (defaults to 1.0.0)",
	)

	return cobraCommand, nil
}

func (c *InitCmd) longDescription() string {
	return fmt.Sprintf(
		"Initializes the current directory as a cpm project, creating a %s manifest.\n"+
			"Servers installed without --global are recorded there, with per-server config\n"+
			"files under %s.",
		config.ManifestFileName,
		filepath.Join(config.ProjectDirName, config.ServersDirName),
	)
}

func (c *InitCmd) run(cmd *cobra.Command, args []string) error {
	logger := c.Logger()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("error getting current directory: %w", err)
	}

	name := ""
	if len(args) > 0 {
		name = args[0]
	}

	manifest, err := config.InitProject(cwd, name, c.ProjectVersion)
	if err != nil {
		logger.Error("Project initialization failed", "dir", cwd, "error", err)
		return fmt.Errorf("error initializing cpm project: %w", err)
	}

	_, err = fmt.Fprintf(
		cmd.OutOrStdout(),
		"✓ Initialized project '%s' (version: %s) at %s\n",
		manifest.Name, manifest.Version, filepath.Join(cwd, config.ManifestFileName),
	)

	return err
}
