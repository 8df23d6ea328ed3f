// Package resolver maps short server names to canonical reverse-DNS
// registry names. Resolutions are cached on disk so repeated installs of
// the same short name skip the registry entirely.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	interrs "github.com/cpm-sh/cpm/internal/errors"
	"github.com/cpm-sh/cpm/internal/files"
	"github.com/cpm-sh/cpm/internal/perms"
	"github.com/cpm-sh/cpm/internal/schema"
)

// Match is a resolution candidate presented to the Selector.
type Match struct {
	// Name is the canonical reverse-DNS registry name.
	Name string

	// Description is the registry description, for display.
	Description string
}

// Selector chooses between multiple resolution candidates. Returning an
// error wrapping ErrResolutionCancelled aborts resolution without caching.
type Selector func(query string, matches []Match) (string, error)

// Searcher is the slice of the registry client the resolver needs.
type Searcher interface {
	Search(ctx context.Context, query string, filters map[string]string) ([]schema.ServerRecord, error)
}

// Resolver resolves short names against a registry.
type Resolver struct {
	logger   hclog.Logger
	registry Searcher
	selector Selector
	cache    string
}

// NewResolver creates a Resolver. The default selector picks the
// top-ranked candidate, keeping resolution deterministic; callers that
// want to involve the user supply their own via WithSelector.
func NewResolver(logger hclog.Logger, registry Searcher, opt ...Option) (*Resolver, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}

	opts, err := NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	return &Resolver{
		logger:   logger.Named("resolver"),
		registry: registry,
		selector: opts.selector,
		cache:    opts.cacheFile,
	}, nil
}

// Resolve returns the canonical name for the given query. Canonical names
// pass through untouched. Short names are looked up in the cache first,
// then matched against the registry.
func (r *Resolver) Resolve(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("%w: empty name", interrs.ErrInvalidName)
	}

	if schema.IsCanonicalName(query) {
		return query, nil
	}

	if cached, ok := r.loadCache()[query]; ok {
		r.logger.Debug("Resolved from cache", "query", query, "name", cached)
		return cached, nil
	}

	matches, err := r.candidates(ctx, query)
	if err != nil {
		return "", err
	}

	resolved := matches[0].Name
	if len(matches) > 1 {
		resolved, err = r.selector(query, matches)
		if err != nil {
			// Cancellation is not a resolution, so nothing gets cached.
			return "", err
		}
	}

	r.storeCache(query, resolved)

	return resolved, nil
}

// ClearCache removes the on-disk resolution cache.
func (r *Resolver) ClearCache() error {
	if err := os.Remove(r.cache); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear resolution cache: %w", err)
	}
	return nil
}

// candidates queries the registry and returns matches ranked best-first:
// exact simple-name matches, then exact full-name matches, then shorter
// names before longer ones.
func (r *Resolver) candidates(ctx context.Context, query string) ([]Match, error) {
	records, err := r.registry.Search(ctx, query, nil)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(records))
	matches := make([]Match, 0, len(records))
	for _, rec := range records {
		name := rec.Server.Name
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		matches = append(matches, Match{Name: name, Description: rec.Server.Description})
	}

	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no registry server matches %q", interrs.ErrServerNotFound, query)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return rank(query, matches[i].Name) < rank(query, matches[j].Name)
	})

	return matches, nil
}

// rank orders candidates for a query. Lower is better.
func rank(query, name string) int {
	switch {
	case schema.SimpleName(name) == query:
		return 0
	case name == query:
		return 1
	default:
		return 2 + len(name)
	}
}

func (r *Resolver) loadCache() map[string]string {
	data, err := os.ReadFile(r.cache)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Warn("Failed to read resolution cache", "path", r.cache, "error", err)
		}
		return map[string]string{}
	}

	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		r.logger.Warn("Discarding corrupt resolution cache", "path", r.cache, "error", err)
		return map[string]string{}
	}

	return entries
}

func (r *Resolver) storeCache(query, resolved string) {
	entries := r.loadCache()
	entries[query] = resolved

	if err := files.WriteJSONAtomic(r.cache, entries, perms.RegularFile); err != nil {
		r.logger.Warn("Failed to write resolution cache", "path", r.cache, "error", err)
	}
}
