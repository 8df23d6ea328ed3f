package resolver

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cpm-sh/cpm/internal/files"
)

// cacheFileName is the default on-disk resolution cache file name.
const cacheFileName = "name-resolutions.json"

// Option defines a functional option for configuring a Resolver.
type Option func(*Options) error

// Options contains optional configuration for the resolver.
type Options struct {
	// cacheFile is the path to the on-disk resolution cache.
	cacheFile string

	// selector disambiguates between multiple candidates.
	selector Selector
}

func NewOptions(opts ...Option) (Options, error) {
	cacheDir, err := files.UserSpecificCacheDir()
	if err != nil {
		return Options{}, err
	}

	// Default options.
	o := Options{
		cacheFile: filepath.Join(cacheDir, cacheFileName),
		selector: func(query string, matches []Match) (string, error) {
			return matches[0].Name, nil
		},
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&o); err != nil {
			return Options{}, err
		}
	}

	return o, nil
}

// WithCacheFile sets the path of the on-disk resolution cache.
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

// WithSelector sets the disambiguation callback.
func WithSelector(selector Selector) Option {
	return func(o *Options) error {
		if selector == nil {
			return fmt.Errorf("selector cannot be nil")
		}
		o.selector = selector
		return nil
	}
}
