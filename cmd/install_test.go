package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/cpm-sh/cpm/internal/cmd"
	"github.com/cpm-sh/cpm/internal/config"
	interrs "github.com/cpm-sh/cpm/internal/errors"
	"github.com/cpm-sh/cpm/internal/files"
	"github.com/cpm-sh/cpm/internal/flags"
	"github.com/cpm-sh/cpm/internal/schema"
)

// isolateHome points every user-specific directory at a temp dir so tests
// never touch the real home.
func isolateHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(files.EnvVarXDGConfigHome, filepath.Join(home, ".config"))
	t.Setenv(files.EnvVarXDGCacheHome, filepath.Join(home, ".cache"))

	return home
}

// initProject creates a fresh project and makes it the working directory.
func initProject(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Chdir(dir)
	_, err := config.InitProject(dir, "demo", "")
	require.NoError(t, err)

	return dir
}

func localStore(t *testing.T, dir string) *config.LocalStore {
	t.Helper()

	store, err := config.NewLocalStore(hclog.NewNullLogger(), dir)
	require.NoError(t, err)

	return store
}

func seedServer(t *testing.T, store config.Store, name string) {
	t.Helper()

	srv := schema.NewStdioServer(name, "npx", []string{"-y", "@acme/" + name})
	srv.Env = map[string]string{"API_KEY": "secret"}
	require.NoError(t, store.AddServer(srv, config.AddOptions{VersionSpec: "1.0.0"}))
}

// runCommand builds and executes one command with captured output.
func runCommand(t *testing.T, build func(*cmd.BaseCmd) (*cobra.Command, error), args ...string) (string, error) {
	t.Helper()

	baseCmd := &cmd.BaseCmd{}
	baseCmd.SetLogger(hclog.NewNullLogger())

	c, err := build(baseCmd)
	require.NoError(t, err)

	output := &bytes.Buffer{}
	c.SetOut(output)
	c.SetErr(output)
	c.SetArgs(args)

	err = c.Execute()

	return output.String(), err
}

// registryServer serves a one-server registry listing.
func registryServer(t *testing.T) *httptest.Server {
	t.Helper()

	detail := schema.ServerDetail{
		Name:        "io.github.acme/search",
		Description: "Full-text search over project files",
		Version:     "1.2.3",
		Packages: []schema.Package{
			{
				RegistryType: "npm",
				Identifier:   "@acme/search-pkg",
				Transport:    schema.Transport{Type: schema.TransportStdio},
				EnvironmentVariables: []schema.KeyValueInput{
					{Name: "API_KEY", IsRequired: true, IsSecret: true},
				},
			},
		},
	}

	payload := map[string]any{
		"servers":  []map[string]any{{"server": detail}},
		"metadata": map[string]any{},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(payload))
	}))
	t.Cleanup(srv.Close)

	return srv
}

// versionedRegistryServer serves one listing record per given version of
// io.github.acme/search.
func versionedRegistryServer(t *testing.T, versions ...string) *httptest.Server {
	t.Helper()

	records := make([]map[string]any, 0, len(versions))
	for _, v := range versions {
		records = append(records, map[string]any{"server": schema.ServerDetail{
			Name:        "io.github.acme/search",
			Description: "Full-text search over project files",
			Version:     v,
			Packages: []schema.Package{
				{
					RegistryType: "npm",
					Identifier:   "@acme/search-pkg",
					Transport:    schema.Transport{Type: schema.TransportStdio},
				},
			},
		}})
	}
	payload := map[string]any{"servers": records, "metadata": map[string]any{}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(payload))
	}))
	t.Cleanup(srv.Close)

	return srv
}

// rewriteManifest applies an edit to an on-disk project manifest.
func rewriteManifest(t *testing.T, dir string, edit func(*schema.Manifest)) {
	t.Helper()

	path := filepath.Join(dir, config.ManifestFileName)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var m schema.Manifest
	require.NoError(t, json.Unmarshal(data, &m))
	edit(&m)

	data, err = json.MarshalIndent(m, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func setRegistryURL(t *testing.T, url string) {
	t.Helper()

	previous := flags.RegistryURL
	t.Cleanup(func() { flags.RegistryURL = previous })
	flags.RegistryURL = url
}

func TestInstallCmd(t *testing.T) {
	isolateHome(t)
	dir := initProject(t)
	setRegistryURL(t, registryServer(t).URL)

	output, err := runCommand(t, NewInstallCmd, "io.github.acme/search")
	require.NoError(t, err)
	require.Contains(t, output, "✓ Installed 'search' (io.github.acme/search@1.2.3)")
	require.Contains(t, output, "API_KEY")

	store := localStore(t, dir)
	srv, err := store.Server("search")
	require.NoError(t, err)
	require.Equal(t, "npx", srv.Command)
	require.Equal(t, []string{"-y", "@acme/search-pkg"}, srv.Args)
	require.Equal(t, map[string]string{"API_KEY": ""}, srv.Env)
	require.Equal(t, "io.github.acme/search", srv.RegistryName)

	version, ok := store.Version("search")
	require.True(t, ok)
	require.Equal(t, "1.2.3", version)

	lock, err := store.Lockfile()
	require.NoError(t, err)
	entry, ok := lock.Servers["search"]
	require.True(t, ok)
	require.Equal(t, "1.2.3", entry.Version)
	require.Equal(t, "io.github.acme/search", entry.Resolved)
	require.True(t, entry.Verify())
}

func TestInstallCmdExisting(t *testing.T) {
	isolateHome(t)
	initProject(t)
	setRegistryURL(t, registryServer(t).URL)

	_, err := runCommand(t, NewInstallCmd, "io.github.acme/search")
	require.NoError(t, err)

	_, err = runCommand(t, NewInstallCmd, "io.github.acme/search")
	require.ErrorIs(t, err, interrs.ErrServerExists)

	_, err = runCommand(t, NewInstallCmd, "io.github.acme/search", "--force")
	require.NoError(t, err)
}

func TestInstallCmdAliasEnvAndGroup(t *testing.T) {
	isolateHome(t)
	dir := initProject(t)
	setRegistryURL(t, registryServer(t).URL)

	output, err := runCommand(t, NewInstallCmd,
		"io.github.acme/search",
		"--alias", "finder",
		"--env", "API_KEY=xyz",
		"--group", "@web",
	)
	require.NoError(t, err)
	require.Contains(t, output, "✓ Installed 'finder'")
	require.NotContains(t, output, "⚠")

	store := localStore(t, dir)
	srv, err := store.Server("finder")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"API_KEY": "xyz"}, srv.Env)
	require.Equal(t, []string{"web"}, srv.Groups)

	members, err := store.GroupServers("web")
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, "finder", members[0].Name)
}

func TestInstallCmdUnknownVersion(t *testing.T) {
	isolateHome(t)
	initProject(t)
	setRegistryURL(t, registryServer(t).URL)

	_, err := runCommand(t, NewInstallCmd, "io.github.acme/search@9.9.9")
	require.ErrorIs(t, err, interrs.ErrVersionNotFound)
}

func TestInstallCmdFromManifest(t *testing.T) {
	home := isolateHome(t)
	dir := initProject(t)
	reg := registryServer(t)
	setRegistryURL(t, reg.URL)

	_, err := runCommand(t, NewInstallCmd, "io.github.acme/search", "--group", "web")
	require.NoError(t, err)
	_, err = runCommand(t, NewConfigCmd, "set", "search", "API_KEY=xyz")
	require.NoError(t, err)

	// Simulate a fresh checkout: the manifest and lockfile survive, the
	// installed state does not. The registry is gone too, so restoring has
	// to come from the lockfile snapshot.
	require.NoError(t, os.RemoveAll(filepath.Join(dir, config.ProjectDirName)))
	reg.Close()
	require.NoError(t, os.RemoveAll(filepath.Join(home, ".cache")))

	output, err := runCommand(t, NewInstallCmd)
	require.NoError(t, err)
	require.Contains(t, output, "✓ search@1.2.3")
	require.Contains(t, output, "✓ Installed 1 server(s)")

	store := localStore(t, dir)
	srv, err := store.Server("search")
	require.NoError(t, err)
	require.Equal(t, "npx", srv.Command)
	require.Equal(t, map[string]string{"API_KEY": "xyz"}, srv.Env, "manifest env overrides are reapplied")
	require.Equal(t, []string{"web"}, srv.Groups, "group tags are restored from the manifest")
}

func TestInstallCmdFromManifestEmpty(t *testing.T) {
	isolateHome(t)
	initProject(t)

	output, err := runCommand(t, NewInstallCmd)
	require.NoError(t, err)
	require.Contains(t, output, "No servers to install")
}

func TestInstallCmdFromManifestRequiresProject(t *testing.T) {
	isolateHome(t)
	t.Chdir(t.TempDir())

	_, err := runCommand(t, NewInstallCmd)
	require.ErrorContains(t, err, "no project manifest")
}

func TestInstallCmdFromManifestIntegrityFailure(t *testing.T) {
	isolateHome(t)
	dir := initProject(t)
	setRegistryURL(t, registryServer(t).URL)

	_, err := runCommand(t, NewInstallCmd, "io.github.acme/search")
	require.NoError(t, err)

	// Tamper with the locked snapshot without refreshing the digest.
	lockPath := filepath.Join(dir, config.LockFileName)
	data, err := os.ReadFile(lockPath)
	require.NoError(t, err)
	var lock schema.Lockfile
	require.NoError(t, json.Unmarshal(data, &lock))
	entry := lock.Servers["search"]
	entry.RegistryMetadata.Packages[0].Identifier = "@evil/search-pkg"
	lock.Servers["search"] = entry
	data, err = json.MarshalIndent(lock, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(lockPath, data, 0o644))

	_, err = runCommand(t, NewInstallCmd)
	require.ErrorContains(t, err, "integrity check failed for 'search'")
}

func TestInstallCmdFromManifestRangeSpec(t *testing.T) {
	isolateHome(t)
	dir := initProject(t)
	setRegistryURL(t, versionedRegistryServer(t, "1.0.0", "1.2.3", "2.0.0").URL)

	rewriteManifest(t, dir, func(m *schema.Manifest) {
		m.Servers["search"] = "^1.0.0"
	})

	output, err := runCommand(t, NewInstallCmd)
	require.NoError(t, err)
	require.Contains(t, output, "✓ search@1.2.3", "highest version within the range wins")

	store := localStore(t, dir)
	lock, err := store.Lockfile()
	require.NoError(t, err)
	entry, ok := lock.Servers["search"]
	require.True(t, ok, "freshly resolved servers get pinned")
	require.Equal(t, "1.2.3", entry.Version)
	require.True(t, entry.Verify())
}

func TestInstallCmdBadEnvFlag(t *testing.T) {
	_, err := runCommand(t, NewInstallCmd, "io.github.acme/search", "--env", "MISSING-SEPARATOR")
	require.ErrorContains(t, err, "expected KEY=VALUE")
}

func TestInitCmd(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	output, err := runCommand(t, NewInitCmd, "demo")
	require.NoError(t, err)
	require.Contains(t, output, "✓ Initialized project 'demo' (version: 1.0.0)")

	_, err = os.Stat(filepath.Join(dir, config.ManifestFileName))
	require.NoError(t, err)

	_, err = runCommand(t, NewInitCmd, "demo")
	require.ErrorContains(t, err, "already exists")
}

func TestUninstallCmd(t *testing.T) {
	isolateHome(t)
	dir := initProject(t)
	seedServer(t, localStore(t, dir), "search")

	output, err := runCommand(t, NewUninstallCmd, "search")
	require.NoError(t, err)
	require.Contains(t, output, "✓ Removed 'search'")

	_, err = localStore(t, dir).Server("search")
	require.ErrorIs(t, err, interrs.ErrServerNotFound)

	_, err = runCommand(t, NewUninstallCmd, "search")
	require.ErrorIs(t, err, interrs.ErrServerNotFound)
}

func TestListCmd(t *testing.T) {
	isolateHome(t)
	dir := initProject(t)
	store := localStore(t, dir)
	seedServer(t, store, "search")
	seedServer(t, store, "mysql")

	output, err := runCommand(t, NewListCmd)
	require.NoError(t, err)
	require.Contains(t, output, "mysql@1.0.0")
	require.Contains(t, output, "search@1.0.0")
	require.Contains(t, output, "[stdio]")
}
