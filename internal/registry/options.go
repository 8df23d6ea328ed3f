package registry

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cpm-sh/cpm/internal/files"
)

const (
	// DefaultTTL is how long cached registry listings stay fresh.
	DefaultTTL = 1 * time.Hour

	// DefaultTimeout bounds a single registry HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultPageLimit is the page size requested from the registry.
	DefaultPageLimit = 100

	// cacheFileName is the default on-disk cache file name.
	cacheFileName = "registry-cache.json"
)

// Option defines a functional option for configuring a Client.
type Option func(*Options) error

// Options contains optional configuration for the registry client.
type Options struct {
	// baseURL is the registry servers endpoint.
	baseURL string

	// cacheFile is the path to the on-disk listing cache.
	cacheFile string

	// ttl is the time-to-live for the cached listing.
	ttl time.Duration

	// timeout bounds each HTTP request to the registry.
	timeout time.Duration

	// limit is the page size used when listing servers.
	limit int
}

func NewOptions(opts ...Option) (Options, error) {
	cacheDir, err := files.UserSpecificCacheDir()
	if err != nil {
		return Options{}, err
	}

	// Default options.
	o := Options{
		cacheFile: filepath.Join(cacheDir, cacheFileName),
		ttl:       DefaultTTL,
		timeout:   DefaultTimeout,
		limit:     DefaultPageLimit,
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&o); err != nil {
			return Options{}, err
		}
	}

	if o.baseURL == "" {
		return Options{}, fmt.Errorf("registry base URL cannot be empty")
	}

	return o, nil
}

// WithBaseURL sets the registry servers endpoint.
func WithBaseURL(url string) Option {
	return func(o *Options) error {
		url = strings.TrimSpace(url)
		if url == "" {
			return fmt.Errorf("registry base URL cannot be empty")
		}
		o.baseURL = strings.TrimSuffix(url, "/")
		return nil
	}
}

// WithCacheFile sets the path of the on-disk listing cache.
func WithCacheFile(path string) Option {
	return func(o *Options) error {
		path = strings.TrimSpace(path)
		if path == "" {
			return fmt.Errorf("cache file path cannot be empty")
		}
		o.cacheFile = path
		return nil
	}
}

// WithTTL sets the cache time-to-live.
func WithTTL(ttl time.Duration) Option {
	return func(o *Options) error {
		if ttl <= 0 {
			return fmt.Errorf("TTL must be positive, got %v", ttl)
		}
		o.ttl = ttl
		return nil
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", timeout)
		}
		o.timeout = timeout
		return nil
	}
}

// WithLimit sets the page size used when listing servers.
func WithLimit(limit int) Option {
	return func(o *Options) error {
		if limit <= 0 {
			return fmt.Errorf("limit must be positive, got %d", limit)
		}
		o.limit = limit
		return nil
	}
}
