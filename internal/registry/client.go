// Package registry implements the read-only client for MCP registries
// speaking the standard server.json listing API. Listings are cached on
// disk so that repeated lookups do not hammer the registry, with a stale
// cache serving as a fallback when the network is unavailable.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"

	interrs "github.com/cpm-sh/cpm/internal/errors"
	"github.com/cpm-sh/cpm/internal/files"
	"github.com/cpm-sh/cpm/internal/filter"
	"github.com/cpm-sh/cpm/internal/perms"
	"github.com/cpm-sh/cpm/internal/schema"
	"github.com/cpm-sh/cpm/internal/semver"
)

// Client queries an MCP registry and maintains the on-disk listing cache.
type Client struct {
	logger  hclog.Logger
	http    *http.Client
	baseURL string
	cache   string
	ttl     time.Duration
	limit   int
}

// listResponse is the wire shape of a registry listing page.
type listResponse struct {
	Servers  []schema.ServerRecord `json:"servers"`
	Metadata struct {
		NextCursor string `json:"nextCursor,omitempty"`
	} `json:"metadata,omitempty"`
}

// cacheDocument is the on-disk cache shape.
type cacheDocument struct {
	Servers   []schema.ServerRecord `json:"servers"`
	Timestamp string                `json:"timestamp"`
}

// NewClient creates a registry client.
func NewClient(logger hclog.Logger, opt ...Option) (*Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	opts, err := NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	return &Client{
		logger:  logger.Named("registry"),
		http:    &http.Client{Timeout: opts.timeout},
		baseURL: opts.baseURL,
		cache:   opts.cacheFile,
		ttl:     opts.ttl,
		limit:   opts.limit,
	}, nil
}

// Servers returns the full registry listing, serving from the on-disk cache
// when it is fresh. With forceRefresh the registry is always queried, and the
// stale cache is only used if the network fetch fails.
func (c *Client) Servers(ctx context.Context, forceRefresh bool) ([]schema.ServerRecord, error) {
	if !forceRefresh {
		if cached, ok := c.loadCache(); ok {
			return cached, nil
		}
	}

	records, err := c.fetchAll(ctx)
	if err != nil {
		// Network failure: fall back to a stale cache if one exists.
		if stale, ok := c.loadCacheIgnoringTTL(); ok {
			c.logger.Warn("Registry unreachable, serving stale cache", "error", err)
			return stale, nil
		}
		return nil, err
	}

	c.storeCache(records)

	return records, nil
}

// Server returns the record for the given canonical name at the given version.
// An empty version or the sentinel 'latest' selects the highest version known
// to the registry.
func (c *Client) Server(ctx context.Context, name string, version string) (schema.ServerDetail, error) {
	candidates, err := c.recordsFor(ctx, name)
	if err != nil {
		return schema.ServerDetail{}, err
	}

	if version == "" || version == semver.Latest {
		best := candidates[0].Server
		for _, r := range candidates[1:] {
			if cmp, err := semver.Compare(r.Server.Version, best.Version); err == nil && cmp > 0 {
				best = r.Server
			}
		}
		return best, nil
	}

	for _, r := range candidates {
		if r.Server.Version == version {
			return r.Server, nil
		}
	}

	return schema.ServerDetail{}, fmt.Errorf(
		"%w: %s has no version %s", interrs.ErrVersionNotFound, name, version,
	)
}

// Versions returns all known versions for the given canonical name,
// sorted highest first.
func (c *Client) Versions(ctx context.Context, name string) ([]string, error) {
	candidates, err := c.recordsFor(ctx, name)
	if err != nil {
		return nil, err
	}

	versions := make([]string, 0, len(candidates))
	for _, r := range candidates {
		versions = append(versions, r.Server.Version)
	}
	sort.Slice(versions, func(i, j int) bool {
		cmp, err := semver.Compare(versions[i], versions[j])
		if err != nil {
			return versions[i] > versions[j]
		}
		return cmp > 0
	})

	return versions, nil
}

// Search returns registry records whose name or description contains the query,
// further narrowed by the supplied filters. Supported filter keys are
// 'version', 'status', 'transport' and 'registry-type'.
func (c *Client) Search(
	ctx context.Context,
	query string,
	filters map[string]string,
) ([]schema.ServerRecord, error) {
	records, err := c.Servers(ctx, false)
	if err != nil {
		return nil, err
	}

	queryMatch := filter.PartialAny(
		func(r schema.ServerRecord) string { return r.Server.Name },
		func(r schema.ServerRecord) string { return r.Server.Description },
	)

	matchers := map[string]filter.Predicate[schema.ServerRecord]{
		"version": filter.Equals(func(r schema.ServerRecord) string {
			return r.Server.Version
		}),
		"status": filter.Equals(func(r schema.ServerRecord) string {
			return r.Server.Status
		}),
		"transport": filter.HasAny(func(r schema.ServerRecord) []string {
			return transports(r.Server)
		}),
		"registry-type": filter.HasAny(func(r schema.ServerRecord) []string {
			types := make([]string, 0, len(r.Server.Packages))
			for _, p := range r.Server.Packages {
				types = append(types, p.RegistryType)
			}
			return types
		}),
	}

	results := make([]schema.ServerRecord, 0)
	for _, r := range records {
		if query != "" && !queryMatch(r, query) {
			continue
		}
		ok, err := filter.Match(r, filters,
			filter.WithMatchers(matchers),
			filter.WithLogFunc[schema.ServerRecord](func(key, val string) {
				c.logger.Debug("Ignoring unsupported search filter", "key", key, "value", val)
			}),
		)
		if err != nil {
			return nil, err
		}
		if ok {
			results = append(results, r)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Server.Name < results[j].Server.Name
	})

	return results, nil
}

// RefreshCache re-fetches the registry listing and rewrites the cache.
func (c *Client) RefreshCache(ctx context.Context) error {
	_, err := c.Servers(ctx, true)
	return err
}

// ClearCache removes the on-disk listing cache.
func (c *Client) ClearCache() error {
	if err := os.Remove(c.cache); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear registry cache: %w", err)
	}
	return nil
}

// recordsFor returns every cached record matching the canonical name.
func (c *Client) recordsFor(ctx context.Context, name string) ([]schema.ServerRecord, error) {
	if err := schema.ValidateRegistryName(name); err != nil {
		return nil, err
	}

	records, err := c.Servers(ctx, false)
	if err != nil {
		return nil, err
	}

	matches := make([]schema.ServerRecord, 0, 1)
	for _, r := range records {
		if r.Server.Name == name {
			matches = append(matches, r)
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", interrs.ErrServerNotFound, name)
	}

	return matches, nil
}

// fetchAll pages through the registry listing until the cursor is exhausted.
func (c *Client) fetchAll(ctx context.Context) ([]schema.ServerRecord, error) {
	var (
		records []schema.ServerRecord
		cursor  string
	)

	for {
		page, err := c.fetchPage(ctx, cursor)
		if err != nil {
			return nil, err
		}

		records = append(records, page.Servers...)

		if page.Metadata.NextCursor == "" {
			break
		}
		cursor = page.Metadata.NextCursor
	}

	c.logger.Debug("Fetched registry listing", "servers", len(records))

	return records, nil
}

func (c *Client) fetchPage(ctx context.Context, cursor string) (listResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.limit))
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	reqURL := fmt.Sprintf("%s?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return listResponse{}, fmt.Errorf("failed to create registry request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return listResponse{}, fmt.Errorf("registry request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return listResponse{}, fmt.Errorf("registry returned status %d for %s", resp.StatusCode, reqURL)
	}

	var page listResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return listResponse{}, fmt.Errorf("failed to decode registry response: %w", err)
	}

	return page, nil
}

// loadCache returns the cached listing when it is younger than the TTL.
func (c *Client) loadCache() ([]schema.ServerRecord, bool) {
	doc, ok := c.readCacheFile()
	if !ok {
		return nil, false
	}

	ts, err := time.Parse(time.RFC3339, doc.Timestamp)
	if err != nil || time.Since(ts) > c.ttl {
		return nil, false
	}

	return doc.Servers, true
}

// loadCacheIgnoringTTL returns whatever cached listing exists, fresh or not.
func (c *Client) loadCacheIgnoringTTL() ([]schema.ServerRecord, bool) {
	doc, ok := c.readCacheFile()
	if !ok {
		return nil, false
	}
	return doc.Servers, true
}

func (c *Client) readCacheFile() (cacheDocument, bool) {
	data, err := os.ReadFile(c.cache)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("Failed to read registry cache", "path", c.cache, "error", err)
		}
		return cacheDocument{}, false
	}

	var doc cacheDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		c.logger.Warn("Registry cache is corrupt, backing up", "path", c.cache, "error", err)
		if backup, berr := files.BackupCorrupt(c.cache); berr == nil {
			c.logger.Info("Backed up corrupt registry cache", "path", backup)
		}
		return cacheDocument{}, false
	}

	return doc, true
}

// storeCache writes the listing to disk. Failures are logged, never fatal:
// the cache is an optimization, not a source of truth.
func (c *Client) storeCache(records []schema.ServerRecord) {
	doc := cacheDocument{
		Servers:   records,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if err := files.WriteJSONAtomic(c.cache, doc, perms.RegularFile); err != nil {
		c.logger.Warn("Failed to write registry cache", "path", c.cache, "error", err)
	}
}

// transports collects every transport type a server offers across its
// packages and remotes.
func transports(s schema.ServerDetail) []string {
	seen := make(map[string]struct{}, 3)
	out := make([]string, 0, 3)

	add := func(t string) {
		if t == "" {
			return
		}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	for _, p := range s.Packages {
		add(p.Transport.Type)
	}
	for _, r := range s.Remotes {
		add(r.Type)
	}

	return out
}
