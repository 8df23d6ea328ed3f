package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/cpm-sh/cpm/internal/cmd"
	"github.com/cpm-sh/cpm/internal/flags"
)

var version = "dev" // Set at build time using -ldflags

type RootCmd struct {
	*cmd.BaseCmd
}

func Execute() error {
	logger, err := configureLogger()
	if err != nil {
		return fmt.Errorf("error configuring logger: %w", err)
	}

	rootCmd, err := NewRootCmd(logger)
	if err != nil {
		return err
	}

	return rootCmd.Execute()
}

func NewRootCmd(logger hclog.Logger) (*cobra.Command, error) {
	baseCmd := &cmd.BaseCmd{}
	baseCmd.SetLogger(logger)

	c := &RootCmd{BaseCmd: baseCmd}

	rootCmd := &cobra.Command{
		Use:          "cpm <command> [args]",
		Short:        "'cpm' installs, configures and synchronizes MCP servers.",
		Long:         c.longDescription(),
		SilenceUsage: true,
		Version:      version,
	}

	// Global flags
	flags.InitFlags(rootCmd.PersistentFlags())

	for _, build := range []func(*cmd.BaseCmd) (*cobra.Command, error){
		NewInitCmd,
		NewInstallCmd,
		NewUninstallCmd,
		NewOutdatedCmd,
		NewListCmd,
		NewSearchCmd,
		NewInfoCmd,
		NewConfigCmd,
		NewGroupCmd,
		NewSyncCmd,
		NewCacheCmd,
		NewSettingsCmd,
		NewVersionCmd,
	} {
		sub, err := build(baseCmd)
		if err != nil {
			return nil, err
		}
		rootCmd.AddCommand(sub)
	}

	return rootCmd, nil
}

func (c *RootCmd) longDescription() string {
	return `The 'cpm' CLI manages MCP server dependencies: it resolves names against the
MCP registry, installs servers into a global or project-local store, manages
environment configuration and groups, and synchronizes installed servers into
the config files of supported MCP clients.`
}

func configureLogger() (hclog.Logger, error) {
	logPath := strings.TrimSpace(os.Getenv(flags.EnvVarLogPath))

	// If CPM_LOG_PATH is not set, don't log anywhere.
	logOutput := io.Discard

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file (%s): %w", logPath, err)
		}
		logOutput = f
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "cpm",
		Level:  hclog.LevelFromString(getLogLevel()),
		Output: logOutput,
	})

	return logger, nil
}

func getLogLevel() string {
	lvl := strings.ToLower(os.Getenv(flags.EnvVarLogLevel))
	switch lvl {
	case "trace", "debug", "info", "warn", "error", "off":
		return lvl
	default:
		return "info"
	}
}
