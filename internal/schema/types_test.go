package schema

import (
	"testing"

	"github.com/stretchr/testify/require"

	interrs "github.com/cpm-sh/cpm/internal/errors"
)

func TestValidateRegistryName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "canonical", input: "io.github.acme/search"},
		{name: "short namespace", input: "acme/search"},
		{name: "no slash", input: "search", wantErr: true},
		{name: "two slashes", input: "io.github/acme/search", wantErr: true},
		{name: "empty namespace", input: "/search", wantErr: true},
		{name: "empty server", input: "io.github.acme/", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateRegistryName(tc.input)
			if tc.wantErr {
				require.ErrorIs(t, err, interrs.ErrInvalidName)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSimpleName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "search", SimpleName("io.github.acme/search"))
	require.Equal(t, "search", SimpleName("search"))
}

func TestIsCanonicalName(t *testing.T) {
	t.Parallel()

	require.True(t, IsCanonicalName("io.github.acme/search"))
	require.False(t, IsCanonicalName("search"))
}

func TestStripGroupPrefix(t *testing.T) {
	t.Parallel()

	require.Equal(t, "dev", StripGroupPrefix("@dev"))
	require.Equal(t, "dev", StripGroupPrefix("dev"))
	require.Equal(t, "dev", StripGroupPrefix("  @dev"))
}

func TestServerDetail_Validate(t *testing.T) {
	t.Parallel()

	valid := ServerDetail{Name: "io.github.acme/search", Version: "1.0.0"}
	require.NoError(t, valid.Validate())

	noVersion := ServerDetail{Name: "io.github.acme/search"}
	require.ErrorIs(t, noVersion.Validate(), interrs.ErrInvalidVersion)

	badName := ServerDetail{Name: "search", Version: "1.0.0"}
	require.ErrorIs(t, badName.Validate(), interrs.ErrInvalidName)
}

func TestServerDetail_BestPackage(t *testing.T) {
	t.Parallel()

	detail := ServerDetail{
		Packages: []Package{
			{Identifier: "http-pkg", Transport: Transport{Type: TransportStreamableHTTP}},
			{Identifier: "stdio-pkg", Transport: Transport{Type: TransportStdio}},
		},
	}

	pkg, fallback := detail.BestPackage()
	require.Equal(t, "stdio-pkg", pkg.Identifier)
	require.False(t, fallback)

	detail.Packages = detail.Packages[:1]
	pkg, fallback = detail.BestPackage()
	require.Equal(t, "http-pkg", pkg.Identifier)
	require.True(t, fallback)
}

func TestServerDetail_BestRemote(t *testing.T) {
	t.Parallel()

	detail := ServerDetail{
		Remotes: []Transport{
			{Type: TransportSSE, URL: "https://example.com/sse"},
			{Type: TransportStreamableHTTP, URL: "https://example.com/mcp"},
		},
	}
	require.Equal(t, "https://example.com/mcp", detail.BestRemote().URL)

	detail.Remotes = detail.Remotes[:1]
	require.Equal(t, "https://example.com/sse", detail.BestRemote().URL)
}

func TestServerDetail_Installable(t *testing.T) {
	t.Parallel()

	require.False(t, (&ServerDetail{}).Installable())
	require.True(t, (&ServerDetail{Packages: []Package{{}}}).Installable())
	require.True(t, (&ServerDetail{Remotes: []Transport{{}}}).Installable())
}

func TestValidateDocument(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name: "valid package server",
			doc: `{
				"name": "io.github.acme/search",
				"version": "1.0.0",
				"packages": [{
					"registryType": "npm",
					"identifier": "@acme/mcp-search",
					"transport": {"type": "stdio"}
				}]
			}`,
		},
		{
			name: "valid remote server",
			doc: `{
				"name": "io.github.acme/hosted",
				"version": "1.0.0",
				"remotes": [{"type": "streamable-http", "url": "https://example.com/mcp"}]
			}`,
		},
		{
			name:    "missing version",
			doc:     `{"name": "io.github.acme/search"}`,
			wantErr: "version",
		},
		{
			name:    "name without namespace",
			doc:     `{"name": "search", "version": "1.0.0"}`,
			wantErr: "name",
		},
		{
			name: "bad transport type",
			doc: `{
				"name": "io.github.acme/search",
				"version": "1.0.0",
				"packages": [{
					"registryType": "npm",
					"identifier": "@acme/mcp-search",
					"transport": {"type": "telnet"}
				}]
			}`,
			wantErr: "transport",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateDocument([]byte(tc.doc))
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}
