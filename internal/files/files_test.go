package files

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cpm-sh/cpm/internal/perms"
)

func TestUserSpecificDirs(t *testing.T) {
	t.Run("cache respects XDG_CACHE_HOME", func(t *testing.T) {
		tmp := t.TempDir()
		t.Setenv(EnvVarXDGCacheHome, tmp)

		dir, err := UserSpecificCacheDir()
		require.NoError(t, err)
		require.Equal(t, filepath.Join(tmp, AppDirName()), dir)
	})

	t.Run("config respects XDG_CONFIG_HOME", func(t *testing.T) {
		tmp := t.TempDir()
		t.Setenv(EnvVarXDGConfigHome, tmp)

		dir, err := UserSpecificConfigDir()
		require.NoError(t, err)
		require.Equal(t, filepath.Join(tmp, AppDirName()), dir)
	})

	t.Run("falls back to home directory", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		t.Setenv(EnvVarXDGCacheHome, "")

		dir, err := UserSpecificCacheDir()
		require.NoError(t, err)
		require.Equal(t, filepath.Join(home, ".cache", AppDirName()), dir)
	})

	t.Run("rejects relative XDG path", func(t *testing.T) {
		t.Setenv(EnvVarXDGCacheHome, "relative/path")

		_, err := UserSpecificCacheDir()
		require.ErrorContains(t, err, "must be an absolute path")
	})
}

func TestEnsureAtLeastRegularDir(t *testing.T) {
	t.Parallel()

	t.Run("creates missing directory", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "servers")
		require.NoError(t, EnsureAtLeastRegularDir(path))

		info, err := os.Stat(path)
		require.NoError(t, err)
		require.True(t, info.IsDir())
	})

	t.Run("accepts more restrictive permissions", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "secure")
		require.NoError(t, os.Mkdir(path, 0o700))
		require.NoError(t, EnsureAtLeastRegularDir(path))
	})

	t.Run("rejects overly permissive directory", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "open")
		require.NoError(t, os.Mkdir(path, 0o777))
		// Umask may already restrict the mode, force it.
		require.NoError(t, os.Chmod(path, 0o777))

		require.ErrorContains(t, EnsureAtLeastRegularDir(path), "incorrect permissions")
	})

	t.Run("rejects file at path", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

		require.Error(t, EnsureAtLeastRegularDir(path))
	})

	t.Run("rejects symlinked directory", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		target := filepath.Join(dir, "target")
		require.NoError(t, os.Mkdir(target, 0o750))
		link := filepath.Join(dir, "link")
		require.NoError(t, os.Symlink(target, link))

		require.ErrorContains(t, EnsureAtLeastRegularDir(link), "symlink")
	})
}

func TestWriteJSONAtomic(t *testing.T) {
	t.Parallel()

	t.Run("writes indented JSON with permissions", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "nested", "doc.json")
		require.NoError(t, WriteJSONAtomic(path, map[string]string{"key": "value"}, perms.RegularFile))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Contains(t, string(data), "  \"key\": \"value\"")

		var doc map[string]string
		require.NoError(t, json.Unmarshal(data, &doc))
		require.Equal(t, "value", doc["key"])

		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, perms.RegularFile, info.Mode().Perm())
	})

	t.Run("replaces existing file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "doc.json")
		require.NoError(t, WriteJSONAtomic(path, map[string]int{"v": 1}, perms.RegularFile))
		require.NoError(t, WriteJSONAtomic(path, map[string]int{"v": 2}, perms.RegularFile))

		var doc map[string]int
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &doc))
		require.Equal(t, 2, doc["v"])
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		require.NoError(t, WriteJSONAtomic(filepath.Join(dir, "doc.json"), "ok", perms.RegularFile))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, "doc.json", entries[0].Name())
	})

	t.Run("rejects unmarshalable value", func(t *testing.T) {
		t.Parallel()

		err := WriteJSONAtomic(filepath.Join(t.TempDir(), "doc.json"), make(chan int), perms.RegularFile)
		require.ErrorContains(t, err, "failed to marshal JSON")
	})
}

func TestBackupCorrupt(t *testing.T) {
	t.Parallel()

	t.Run("renames to bak sibling", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

		backup, err := BackupCorrupt(path)
		require.NoError(t, err)
		require.Equal(t, path+".bak", backup)

		_, err = os.Stat(path)
		require.ErrorIs(t, err, os.ErrNotExist)

		data, err := os.ReadFile(backup)
		require.NoError(t, err)
		require.Equal(t, "{broken", string(data))
	})

	t.Run("missing file errors", func(t *testing.T) {
		t.Parallel()

		_, err := BackupCorrupt(filepath.Join(t.TempDir(), "ghost.json"))
		require.Error(t, err)
	})
}
