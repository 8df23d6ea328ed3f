package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
)

// Scope identifies which store a context delegates to.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeLocal  Scope = "local"
)

// ContextOption configures context construction.
type ContextOption func(*contextOptions) error

type contextOptions struct {
	forceGlobal bool
	forceLocal  bool
	projectDir  string
	globalDir   string
}

// WithForceGlobal selects global scope regardless of manifest presence.
func WithForceGlobal() ContextOption {
	return func(o *contextOptions) error {
		o.forceGlobal = true
		return nil
	}
}

// WithForceLocal selects local scope, failing when no project manifest exists.
func WithForceLocal() ContextOption {
	return func(o *contextOptions) error {
		o.forceLocal = true
		return nil
	}
}

// WithProjectDir overrides the working directory used for manifest detection.
func WithProjectDir(dir string) ContextOption {
	return func(o *contextOptions) error {
		if dir == "" {
			return fmt.Errorf("project directory cannot be empty")
		}
		o.projectDir = dir
		return nil
	}
}

// WithGlobalDir overrides the global store directory.
func WithGlobalDir(dir string) ContextOption {
	return func(o *contextOptions) error {
		if dir == "" {
			return fmt.Errorf("global directory cannot be empty")
		}
		o.globalDir = dir
		return nil
	}
}

// Context binds a Store to a scope, selected once at construction:
// force-global wins, then force-local (which requires a manifest), then
// auto-detection by manifest presence in the working directory.
type Context struct {
	Store

	scope Scope
}

// NewContext selects and opens the appropriate store.
func NewContext(logger hclog.Logger, opt ...ContextOption) (*Context, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	var opts contextOptions
	for _, o := range opt {
		if o == nil {
			continue
		}
		if err := o(&opts); err != nil {
			return nil, err
		}
	}
	if opts.forceGlobal && opts.forceLocal {
		return nil, fmt.Errorf("cannot force both global and local scope")
	}

	dir := opts.projectDir
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
	}

	useLocal := opts.forceLocal
	if !opts.forceGlobal && !opts.forceLocal {
		useLocal = HasProject(dir)
	}

	if useLocal {
		store, err := NewLocalStore(logger, dir)
		if err != nil {
			return nil, err
		}
		return &Context{Store: store, scope: ScopeLocal}, nil
	}

	store, err := NewGlobalStore(logger, opts.globalDir)
	if err != nil {
		return nil, err
	}

	return &Context{Store: store, scope: ScopeGlobal}, nil
}

// Scope reports which store the context selected.
func (c *Context) Scope() Scope {
	return c.scope
}

// IsLocal reports whether the context operates on a project store.
func (c *Context) IsLocal() bool {
	return c.scope == ScopeLocal
}
