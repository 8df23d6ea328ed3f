package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	interrs "github.com/cpm-sh/cpm/internal/errors"
)

func TestNewContext_AutoDetect(t *testing.T) {
	t.Parallel()

	// No manifest: global scope.
	ctx, err := NewContext(testLogger(t),
		WithProjectDir(t.TempDir()),
		WithGlobalDir(t.TempDir()),
	)
	require.NoError(t, err)
	require.Equal(t, ScopeGlobal, ctx.Scope())
	require.False(t, ctx.IsLocal())

	// Manifest present: local scope.
	projectDir := t.TempDir()
	_, err = InitProject(projectDir, "p", "")
	require.NoError(t, err)

	ctx, err = NewContext(testLogger(t),
		WithProjectDir(projectDir),
		WithGlobalDir(t.TempDir()),
	)
	require.NoError(t, err)
	require.Equal(t, ScopeLocal, ctx.Scope())
	require.True(t, ctx.IsLocal())
}

func TestNewContext_ForceGlobalIgnoresManifest(t *testing.T) {
	t.Parallel()

	projectDir := t.TempDir()
	_, err := InitProject(projectDir, "p", "")
	require.NoError(t, err)

	ctx, err := NewContext(testLogger(t),
		WithForceGlobal(),
		WithProjectDir(projectDir),
		WithGlobalDir(t.TempDir()),
	)
	require.NoError(t, err)
	require.Equal(t, ScopeGlobal, ctx.Scope())
}

func TestNewContext_ForceLocalRequiresManifest(t *testing.T) {
	t.Parallel()

	_, err := NewContext(testLogger(t),
		WithForceLocal(),
		WithProjectDir(t.TempDir()),
	)
	require.ErrorIs(t, err, interrs.ErrNoProject)
}

func TestNewContext_ConflictingFlags(t *testing.T) {
	t.Parallel()

	_, err := NewContext(testLogger(t), WithForceGlobal(), WithForceLocal())
	require.ErrorContains(t, err, "cannot force both")
}

func TestContext_DelegatesToSelectedStore(t *testing.T) {
	t.Parallel()

	projectDir := t.TempDir()
	_, err := InitProject(projectDir, "p", "")
	require.NoError(t, err)

	ctx, err := NewContext(testLogger(t),
		WithProjectDir(projectDir),
		WithGlobalDir(t.TempDir()),
	)
	require.NoError(t, err)

	require.NoError(t, ctx.AddServer(testServer("search"), AddOptions{VersionSpec: "^1.0.0"}))

	v, ok := ctx.Version("search")
	require.True(t, ok)
	require.Equal(t, "^1.0.0", v)

	// Same call in global scope reports absence instead of erroring.
	global, err := NewContext(testLogger(t),
		WithForceGlobal(),
		WithProjectDir(projectDir),
		WithGlobalDir(t.TempDir()),
	)
	require.NoError(t, err)
	require.NoError(t, global.AddServer(testServer("search"), AddOptions{VersionSpec: "^1.0.0"}))

	_, ok = global.Version("search")
	require.False(t, ok)
}
