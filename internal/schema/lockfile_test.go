package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func lockDetail() ServerDetail {
	return ServerDetail{
		Name:    "io.github.acme/search",
		Version: "2.1.0",
		Packages: []Package{
			{
				RegistryType: RegistryTypeNPM,
				Identifier:   "@acme/mcp-search",
				Transport:    Transport{Type: TransportStdio},
			},
		},
	}
}

func TestLockfile_PinUnpin(t *testing.T) {
	t.Parallel()

	l := NewLockfile()
	require.Equal(t, CurrentLockfileVersion, l.LockfileVersion)

	entry := NewLockEntry(lockDetail())
	l.Pin("search", entry)

	got, ok := l.Servers["search"]
	require.True(t, ok)
	require.Equal(t, "io.github.acme/search", got.Resolved)
	require.Equal(t, "2.1.0", got.Version)
	require.NotEmpty(t, got.Timestamp)

	l.Unpin("search")
	require.Empty(t, l.Servers)

	// Unpinning an absent server is a no-op.
	l.Unpin("search")
}

func TestLockEntry_Verify(t *testing.T) {
	t.Parallel()

	entry := NewLockEntry(lockDetail())
	require.True(t, entry.Verify())

	entry.RegistryMetadata.Version = "9.9.9"
	require.False(t, entry.Verify(), "tampered snapshot must fail verification")

	entry.Integrity = ""
	require.True(t, entry.Verify(), "entries without a digest verify trivially")
}

func TestLockfile_RoundTrip(t *testing.T) {
	t.Parallel()

	l := NewLockfile()
	l.Pin("search", NewLockEntry(lockDetail()))

	data, err := json.Marshal(l)
	require.NoError(t, err)
	require.Contains(t, string(data), `"lockfileVersion":1`)

	var back Lockfile
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, l, back)
}

func TestLockfile_UnmarshalNormalizesNilServers(t *testing.T) {
	t.Parallel()

	var l Lockfile
	require.NoError(t, json.Unmarshal([]byte(`{"lockfileVersion":1}`), &l))
	require.NotNil(t, l.Servers)
}
