package client

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	interrs "github.com/cpm-sh/cpm/internal/errors"
	"github.com/cpm-sh/cpm/internal/schema"
)

func testStdioServer(name string) schema.RuntimeServer {
	srv := schema.NewStdioServer(name, "npx", []string{"-y", "@acme/server"})
	srv.Env = map[string]string{"API_KEY": "secret"}

	return srv
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("known keys", func(t *testing.T) {
		t.Parallel()

		for _, key := range Names() {
			m, err := New(hclog.NewNullLogger(), key, "")
			require.NoError(t, err)
			require.Equal(t, key, m.Key())
			require.NotEmpty(t, m.Info().Name)
			require.NotEmpty(t, m.Info().ConfigFile)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		t.Parallel()

		_, err := New(hclog.NewNullLogger(), "emacs", "")
		require.ErrorIs(t, err, interrs.ErrClientNotFound)
	})

	t.Run("nil logger", func(t *testing.T) {
		t.Parallel()

		_, err := New(nil, KeyCursor, "")
		require.ErrorContains(t, err, "logger cannot be nil")
	})
}

func TestDetect(t *testing.T) {
	t.Parallel()

	installed, err := Detect(hclog.NewNullLogger())
	require.NoError(t, err)
	require.Len(t, installed, len(Names()))
}

func TestToClientFormat(t *testing.T) {
	t.Parallel()

	t.Run("stdio drops empty env values", func(t *testing.T) {
		t.Parallel()

		srv := testStdioServer("acme")
		srv.Env["UNSET"] = ""

		entry, err := ToClientFormat(srv)
		require.NoError(t, err)
		require.Equal(t, "npx", entry["command"])
		require.Equal(t, []any{"-y", "@acme/server"}, entry["args"])
		require.Equal(t, map[string]any{"API_KEY": "secret"}, entry["env"])
	})

	t.Run("stdio omits empty env", func(t *testing.T) {
		t.Parallel()

		srv := schema.NewStdioServer("acme", "npx", nil)

		entry, err := ToClientFormat(srv)
		require.NoError(t, err)
		require.NotContains(t, entry, "env")
	})

	t.Run("remote", func(t *testing.T) {
		t.Parallel()

		srv := schema.NewRemoteServer(
			"acme", schema.TransportStreamableHTTP, "https://mcp.acme.dev", map[string]string{"Authorization": "Bearer x"},
		)

		entry, err := ToClientFormat(srv)
		require.NoError(t, err)
		require.Equal(t, "https://mcp.acme.dev", entry["url"])
		require.Equal(t, map[string]any{"Authorization": "Bearer x"}, entry["headers"])
	})

	t.Run("unknown install method", func(t *testing.T) {
		t.Parallel()

		_, err := ToClientFormat(schema.RuntimeServer{Name: "acme", InstallMethod: "carrier-pigeon"})
		require.ErrorIs(t, err, interrs.ErrUnsupportedServer)
	})
}

func TestFromClientFormat(t *testing.T) {
	t.Parallel()

	t.Run("stdio", func(t *testing.T) {
		t.Parallel()

		srv, err := FromClientFormat("acme", map[string]any{
			"command": "npx",
			"args":    []any{"-y", "@acme/server"},
			"env":     map[string]any{"API_KEY": "secret"},
		})
		require.NoError(t, err)
		require.True(t, srv.IsStdio())
		require.Equal(t, "npx", srv.Command)
		require.Equal(t, []string{"-y", "@acme/server"}, srv.Args)
		require.Equal(t, map[string]string{"API_KEY": "secret"}, srv.Env)
	})

	t.Run("remote defaults to streamable-http", func(t *testing.T) {
		t.Parallel()

		srv, err := FromClientFormat("acme", map[string]any{"url": "https://mcp.acme.dev"})
		require.NoError(t, err)
		require.Equal(t, schema.TransportStreamableHTTP, srv.InstallMethod)
	})

	t.Run("remote honors sse type", func(t *testing.T) {
		t.Parallel()

		srv, err := FromClientFormat("acme", map[string]any{"url": "https://mcp.acme.dev", "type": "sse"})
		require.NoError(t, err)
		require.Equal(t, schema.TransportSSE, srv.InstallMethod)
	})

	t.Run("neither command nor url", func(t *testing.T) {
		t.Parallel()

		_, err := FromClientFormat("acme", map[string]any{"enabled": true})
		require.ErrorIs(t, err, interrs.ErrUnsupportedServer)
	})
}

func TestJSONManager(t *testing.T) {
	t.Parallel()

	newManager := func(t *testing.T) (Manager, string) {
		t.Helper()
		path := filepath.Join(t.TempDir(), "mcp.json")
		m, err := New(hclog.NewNullLogger(), KeyCursor, path)
		require.NoError(t, err)

		return m, path
	}

	t.Run("add get remove list", func(t *testing.T) {
		t.Parallel()
		m, _ := newManager(t)

		require.NoError(t, m.AddServer(testStdioServer("acme")))
		require.NoError(t, m.AddServer(testStdioServer("beta")))

		names, err := m.ListServers()
		require.NoError(t, err)
		require.Equal(t, []string{"acme", "beta"}, names)

		srv, err := m.Server("acme")
		require.NoError(t, err)
		require.Equal(t, "npx", srv.Command)
		require.Equal(t, map[string]string{"API_KEY": "secret"}, srv.Env)

		require.NoError(t, m.RemoveServer("acme"))
		_, err = m.Server("acme")
		require.ErrorIs(t, err, interrs.ErrServerNotFound)

		err = m.RemoveServer("acme")
		require.ErrorIs(t, err, interrs.ErrServerNotFound)
	})

	t.Run("preserves unrelated keys", func(t *testing.T) {
		t.Parallel()
		m, path := newManager(t)

		require.NoError(t, os.WriteFile(path, []byte(`{"theme":"dark","mcpServers":{}}`), 0o600))
		require.NoError(t, m.AddServer(testStdioServer("acme")))

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(data, &doc))
		require.Equal(t, "dark", doc["theme"])
		require.Contains(t, doc["mcpServers"], "acme")
	})

	t.Run("tolerates jsonc", func(t *testing.T) {
		t.Parallel()
		m, path := newManager(t)

		jsonc := "{\n  // user settings\n  \"mcpServers\": {\"acme\": {\"command\": \"npx\", \"args\": []},},\n}"
		require.NoError(t, os.WriteFile(path, []byte(jsonc), 0o600))

		srv, err := m.Server("acme")
		require.NoError(t, err)
		require.Equal(t, "npx", srv.Command)
	})

	t.Run("backs up corrupt config", func(t *testing.T) {
		t.Parallel()
		m, path := newManager(t)

		require.NoError(t, os.WriteFile(path, []byte("{not even close"), 0o600))

		names, err := m.ListServers()
		require.NoError(t, err)
		require.Empty(t, names)

		_, err = os.Stat(path + ".bak")
		require.NoError(t, err)
	})

	t.Run("skips malformed entries", func(t *testing.T) {
		t.Parallel()
		m, path := newManager(t)

		require.NoError(t, os.WriteFile(path, []byte(
			`{"mcpServers":{"good":{"command":"npx"},"bad":"nope","empty":{}}}`,
		), 0o600))

		servers, err := m.Servers()
		require.NoError(t, err)
		require.Len(t, servers, 1)
		require.Contains(t, servers, "good")
	})
}

func TestClaudeDesktopRejectsRemote(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "claude_desktop_config.json")
	m, err := New(hclog.NewNullLogger(), KeyClaudeDesktop, path)
	require.NoError(t, err)

	srv := schema.NewRemoteServer("acme", schema.TransportSSE, "https://mcp.acme.dev", nil)
	err = m.AddServer(srv)
	require.ErrorIs(t, err, interrs.ErrUnsupportedServer)

	require.NoError(t, m.AddServer(testStdioServer("acme")))
}

func TestWindsurfRenamesURL(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mcp_config.json")
	m, err := New(hclog.NewNullLogger(), KeyWindsurf, path)
	require.NoError(t, err)

	srv := schema.NewRemoteServer("acme", schema.TransportStreamableHTTP, "https://mcp.acme.dev", nil)
	require.NoError(t, m.AddServer(srv))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	entry := doc["mcpServers"].(map[string]any)["acme"].(map[string]any)
	require.Equal(t, "https://mcp.acme.dev", entry["serverUrl"])
	require.NotContains(t, entry, "url")

	got, err := m.Server("acme")
	require.NoError(t, err)
	require.Equal(t, "https://mcp.acme.dev", got.URL)
}

func TestVSCodeNestsUnderMCP(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.json")
	m, err := New(hclog.NewNullLogger(), KeyVSCode, path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"editor.fontSize": 14}`), 0o600))
	require.NoError(t, m.AddServer(testStdioServer("acme")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, float64(14), doc["editor.fontSize"])

	entry := doc["mcp"].(map[string]any)["servers"].(map[string]any)["acme"].(map[string]any)
	require.Equal(t, schema.TransportStdio, entry["type"])
	require.Equal(t, "npx", entry["command"])

	got, err := m.Server("acme")
	require.NoError(t, err)
	require.True(t, got.IsStdio())
}

func TestContinueListLayout(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := New(hclog.NewNullLogger(), KeyContinue, path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(
		"models:\n  - name: gpt\nmcpServers:\n  - name: keeper\n    command: uvx\n    args: []\n",
	), 0o600))

	require.NoError(t, m.AddServer(testStdioServer("acme")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	require.Contains(t, doc, "models")

	entries := doc["mcpServers"].([]any)
	require.Len(t, entries, 2)

	names, err := m.ListServers()
	require.NoError(t, err)
	require.Equal(t, []string{"acme", "keeper"}, names)

	// Re-adding replaces in place instead of appending a duplicate.
	updated := testStdioServer("acme")
	updated.Args = []string{"@acme/other"}
	require.NoError(t, m.AddServer(updated))

	names, err = m.ListServers()
	require.NoError(t, err)
	require.Equal(t, []string{"acme", "keeper"}, names)

	got, err := m.Server("acme")
	require.NoError(t, err)
	require.Equal(t, []string{"@acme/other"}, got.Args)

	require.NoError(t, m.RemoveServer("keeper"))
	_, err = m.Server("keeper")
	require.ErrorIs(t, err, interrs.ErrServerNotFound)
}

func TestGooseFieldMapping(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := New(hclog.NewNullLogger(), KeyGoose, path)
	require.NoError(t, err)

	t.Run("stdio", func(t *testing.T) {
		require.NoError(t, m.AddServer(testStdioServer("acme")))

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var doc map[string]any
		require.NoError(t, yaml.Unmarshal(data, &doc))
		entry := doc["extensions"].(map[string]any)["acme"].(map[string]any)
		require.Equal(t, "npx", entry["cmd"])
		require.Equal(t, "stdio", entry["type"])
		require.Equal(t, true, entry["enabled"])
		require.Equal(t, "acme", entry["name"])
		require.NotContains(t, entry, "command")
		require.NotContains(t, entry, "env")
		require.Equal(t, map[string]any{"API_KEY": "secret"}, entry["envs"])

		got, err := m.Server("acme")
		require.NoError(t, err)
		require.Equal(t, "npx", got.Command)
		require.Equal(t, map[string]string{"API_KEY": "secret"}, got.Env)
	})

	t.Run("remote exports as sse", func(t *testing.T) {
		srv := schema.NewRemoteServer("beta", schema.TransportStreamableHTTP, "https://mcp.beta.dev", nil)
		require.NoError(t, m.AddServer(srv))

		got, err := m.Server("beta")
		require.NoError(t, err)
		require.Equal(t, schema.TransportSSE, got.InstallMethod)
		require.Equal(t, "https://mcp.beta.dev", got.URL)
	})
}
