package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	interrs "github.com/cpm-sh/cpm/internal/errors"
)

func TestManifest_Validate(t *testing.T) {
	t.Parallel()

	m := NewManifest("my-project", "")
	require.Equal(t, "1.0.0", m.Version)
	require.NoError(t, m.Validate())

	m.Servers["search"] = "^1.0.0"
	m.DevServers["mock-api"] = "latest"
	require.NoError(t, m.Validate())

	m.DevServers["search"] = "latest"
	require.ErrorIs(t, m.Validate(), interrs.ErrInvalidName)
}

func TestManifest_ServerLookups(t *testing.T) {
	t.Parallel()

	m := NewManifest("my-project", "0.1.0")
	m.Servers["search"] = "^1.0.0"
	m.DevServers["mock-api"] = "latest"

	require.True(t, m.HasServer("search"))
	require.True(t, m.HasServer("mock-api"))
	require.False(t, m.HasServer("missing"))

	v, ok := m.ServerVersion("search")
	require.True(t, ok)
	require.Equal(t, "^1.0.0", v)

	v, ok = m.ServerVersion("mock-api")
	require.True(t, ok)
	require.Equal(t, "latest", v)

	_, ok = m.ServerVersion("missing")
	require.False(t, ok)

	require.ElementsMatch(t, []string{"search", "mock-api"}, m.ServerNames())
}

func TestManifest_UnmarshalNormalizesNils(t *testing.T) {
	t.Parallel()

	var m Manifest
	require.NoError(t, json.Unmarshal([]byte(`{"name":"p","version":"1.0.0"}`), &m))

	require.NotNil(t, m.Servers)
	require.NotNil(t, m.DevServers)
	require.NotNil(t, m.Groups)
	require.NotNil(t, m.Config)
}

func TestManifest_RoundTrip(t *testing.T) {
	t.Parallel()

	m := NewManifest("my-project", "0.1.0")
	m.Servers["search"] = "^1.0.0"
	m.Groups["dev"] = []string{"search"}
	m.Config["search"] = map[string]string{"API_KEY": "${API_KEY}"}

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var back Manifest
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, m, back)
}

func TestGroup(t *testing.T) {
	t.Parallel()

	g := NewGroup("@dev", "development servers")
	require.Equal(t, "dev", g.Name, "display prefix stripped before storage")
	require.Equal(t, g.CreatedAt, g.UpdatedAt)
	require.NotEmpty(t, g.CreatedAt)
}
