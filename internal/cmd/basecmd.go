package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/cpm-sh/cpm/internal/config"
	"github.com/cpm-sh/cpm/internal/flags"
	"github.com/cpm-sh/cpm/internal/registry"
	"github.com/cpm-sh/cpm/internal/resolver"
	"github.com/cpm-sh/cpm/internal/settings"
)

// BaseCmd carries the wiring shared by every CLI command: the logger and
// constructors for the registry client, the name resolver, and the scoped
// config store.
type BaseCmd struct {
	logger hclog.Logger
}

// SetLogger updates the command's logger.
func (c *BaseCmd) SetLogger(logger hclog.Logger) {
	c.logger = logger
}

// Logger returns the current logger for the command, building a fallback
// from flags and environment when none was injected.
func (c *BaseCmd) Logger() hclog.Logger {
	if c.logger != nil {
		return c.logger
	}

	logLevel := flags.LogLevel
	if logLevel == "" {
		logLevel = strings.ToLower(os.Getenv(flags.EnvVarLogLevel))
		if logLevel == "" {
			logLevel = flags.DefaultLogLevel
		}
	}

	logPath := flags.LogPath
	if logPath == "" {
		logPath = strings.TrimSpace(os.Getenv(flags.EnvVarLogPath))
	}

	var output io.Writer = io.Discard
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file (%s): %v, using stderr\n", logPath, err)
		} else {
			output = f
		}
	}

	c.logger = hclog.New(&hclog.LoggerOptions{
		Name:   "cpm-default",
		Level:  hclog.LevelFromString(logLevel),
		Output: output,
	})

	return c.logger
}

// Settings loads the user settings file. A missing or unreadable file is
// not fatal; commands fall back to flag and environment defaults.
func (c *BaseCmd) Settings() settings.Settings {
	path, err := settings.DefaultPath()
	if err != nil {
		c.Logger().Warn("Failed to locate settings file", "error", err)
		return settings.Settings{}
	}

	s, err := settings.Load(path)
	if err != nil {
		c.Logger().Warn("Failed to load settings file", "path", path, "error", err)
		return settings.Settings{}
	}

	return s
}

// RegistryClient builds the registry client. The base URL comes from the
// --registry-url flag (or its environment variable); the settings file
// override applies only when the flag is still at its default.
func (c *BaseCmd) RegistryClient() (*registry.Client, error) {
	s := c.Settings()

	url := flags.RegistryURL
	if url == flags.DefaultRegistryURL && s.RegistryURL != "" {
		url = s.RegistryURL
	}

	opts := []registry.Option{registry.WithBaseURL(url)}
	if ttl, ok := s.TTL(); ok {
		opts = append(opts, registry.WithTTL(ttl))
	}

	return registry.NewClient(c.Logger(), opts...)
}

// Resolver builds the name resolver on top of a registry client.
func (c *BaseCmd) Resolver(reg *registry.Client, opt ...resolver.Option) (*resolver.Resolver, error) {
	return resolver.NewResolver(c.Logger(), reg, opt...)
}

// Context opens the config store selected by the scope flags.
func (c *BaseCmd) Context(global, local bool) (*config.Context, error) {
	var opts []config.ContextOption
	if global {
		opts = append(opts, config.WithForceGlobal())
	}
	if local {
		opts = append(opts, config.WithForceLocal())
	}

	return config.NewContext(c.Logger(), opts...)
}
