package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cpm-sh/cpm/internal/config"
	"github.com/cpm-sh/cpm/internal/schema"
)

func TestSyncCmd(t *testing.T) {
	home := isolateHome(t)
	dir := initProject(t)
	store := localStore(t, dir)
	seedServer(t, store, "search")

	remote := schema.NewRemoteServer("hosted", schema.TransportStreamableHTTP, "https://mcp.acme.dev", nil)
	require.NoError(t, store.AddServer(remote, config.AddOptions{VersionSpec: "1.0.0"}))

	t.Run("pushes to explicit client", func(t *testing.T) {
		output, err := runCommand(t, NewSyncCmd, "--client", "cursor")
		require.NoError(t, err)
		require.Contains(t, output, "✓ cursor: 2 server(s) synced")

		_, err = os.Stat(filepath.Join(home, ".cursor", "mcp.json"))
		require.NoError(t, err)
	})

	t.Run("reports unsupported servers", func(t *testing.T) {
		output, err := runCommand(t, NewSyncCmd, "--client", "claude-desktop")
		require.NoError(t, err)
		require.Contains(t, output, "✓ claude-desktop: 1 server(s) synced")
		require.Contains(t, output, "⚠ skipped 'hosted'")
	})

	t.Run("group scoped sync", func(t *testing.T) {
		require.NoError(t, store.CreateGroup("web", ""))
		require.NoError(t, store.AddServerToGroup("search", "web"))

		output, err := runCommand(t, NewSyncCmd, "--client", "windsurf", "--group", "@web")
		require.NoError(t, err)
		require.Contains(t, output, "✓ windsurf: 1 server(s) synced")
	})

	t.Run("unknown client", func(t *testing.T) {
		_, err := runCommand(t, NewSyncCmd, "--client", "emacs")
		require.Error(t, err)
	})

	t.Run("no servers", func(t *testing.T) {
		empty := t.TempDir()
		t.Chdir(empty)
		_, err := config.InitProject(empty, "empty", "")
		require.NoError(t, err)

		output, err := runCommand(t, NewSyncCmd)
		require.NoError(t, err)
		require.Contains(t, output, "No servers to sync")
	})
}
