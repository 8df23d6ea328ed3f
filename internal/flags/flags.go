package flags

import (
	"os"
	"strings"

	"github.com/spf13/pflag"
)

const (
	// Env vars
	EnvVarRegistryURL = "CPM_REGISTRY_URL"
	EnvVarLogPath     = "CPM_LOG_PATH"
	EnvVarLogLevel    = "CPM_LOG_LEVEL"

	// Defaults
	DefaultRegistryURL = "https://registry.modelcontextprotocol.io/v0.1/servers"
	DefaultLogPath     = ""
	DefaultLogLevel    = "info"

	// Flag names
	FlagNameRegistryURL = "registry-url"
	FlagNameLogPath     = "log-path"
	FlagNameLogLevel    = "log-level"
	FlagNameGlobal      = "global"
	FlagNameLocal       = "local"
)

var (
	RegistryURL string
	LogPath     string
	LogLevel    string
)

func InitFlags(fs *pflag.FlagSet) {
	initRegistryURL(fs)
	initLogger(fs)
}

// AddScopeFlags registers the scope-selection flags on a command flag set.
// The bound booleans feed config.NewContext; --global wins over --local.
func AddScopeFlags(fs *pflag.FlagSet, global *bool, local *bool) {
	fs.BoolVarP(global, FlagNameGlobal, "g", false, "operate on the global (per-user) configuration")
	fs.BoolVar(local, FlagNameLocal, false, "operate on the local project configuration (requires a project manifest)")
}

func initRegistryURL(fs *pflag.FlagSet) {
	if RegistryURL == "" {
		if env := strings.TrimSpace(os.Getenv(EnvVarRegistryURL)); env != "" {
			RegistryURL = env
		} else {
			RegistryURL = DefaultRegistryURL
		}
	}
	fs.StringVar(&RegistryURL, FlagNameRegistryURL, RegistryURL, "base URL of the MCP server registry")
}

func initLogger(fs *pflag.FlagSet) {
	if LogPath == "" {
		if env := strings.TrimSpace(os.Getenv(EnvVarLogPath)); env != "" {
			LogPath = env
		} else {
			LogPath = DefaultLogPath
		}
	}
	fs.StringVar(&LogPath, FlagNameLogPath, LogPath, "path to generated log file")

	if LogLevel == "" {
		if env := strings.TrimSpace(os.Getenv(EnvVarLogLevel)); env != "" {
			LogLevel = strings.ToLower(env)
		} else {
			LogLevel = DefaultLogLevel
		}
	}
	fs.StringVar(&LogLevel, FlagNameLogLevel, LogLevel, "log level for cpm logs")
}
