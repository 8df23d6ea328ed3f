package perms

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// The constants are only useful if the kernel honors them on creation, so
// these tests write real files and directories and stat them back.

func TestFileCreation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		perm os.FileMode
	}{
		{name: "regular file lands as 0644", perm: RegularFile},
		{name: "secure file lands as 0600", perm: SecureFile},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "server.json")
			require.NoError(t, os.WriteFile(path, []byte("{}"), tc.perm))

			info, err := os.Stat(path)
			require.NoError(t, err)
			require.Equal(t, tc.perm, info.Mode().Perm())
		})
	}
}

func TestDirCreation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		perm os.FileMode
	}{
		{name: "regular dir lands as 0755", perm: RegularDir},
		{name: "secure dir lands as 0700", perm: SecureDir},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "servers")
			require.NoError(t, os.MkdirAll(path, tc.perm))

			info, err := os.Stat(path)
			require.NoError(t, err)
			require.True(t, info.IsDir())
			require.Equal(t, tc.perm, info.Mode().Perm())
		})
	}
}

func TestSecureModesIgnoreParentDir(t *testing.T) {
	t.Parallel()

	// A wide-open parent must not loosen what gets created inside it.
	parent := filepath.Join(t.TempDir(), "parent")
	require.NoError(t, os.MkdirAll(parent, 0o777))

	path := filepath.Join(parent, "servers.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), SecureFile))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, SecureFile, info.Mode().Perm())
}
