package fileregistry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/skosovsky/aibridge/catalog"
)

// Ensures Registry implements catalog.Registry.
var _ catalog.Registry = (*Registry)(nil)

// Registry loads vendor catalogs from the filesystem (lazy, cached).
// Resolves vendor+env to {dir}/{vendor}.{env}.yaml with fallback to {dir}/{vendor}.yaml.
type Registry struct {
	dir   string
	env   string
	mu    sync.RWMutex
	cache map[string]*catalog.Catalog
}

// New creates a Registry that reads YAML catalogs from dir.
func New(dir string, opts ...Option) *Registry {
	r := &Registry{
		dir:   dir,
		cache: make(map[string]*catalog.Catalog),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Option configures a Registry.
type Option func(*Registry)

// WithEnvironment sets the environment used by Catalog, e.g. "staging".
func WithEnvironment(env string) Option {
	return func(r *Registry) { r.env = env }
}

// Catalog returns the catalog of vendor for the configured environment.
func (r *Registry) Catalog(ctx context.Context, vendor string) (*catalog.Catalog, error) {
	return r.CatalogEnv(ctx, vendor, r.env)
}

// CatalogEnv returns the catalog of vendor for env. Lazy-loads and caches.
// File resolution: {dir}/{vendor}.{env}.yaml or .yml, fallback {dir}/{vendor}.yaml or .yml.
func (r *Registry) CatalogEnv(ctx context.Context, vendor, env string) (*catalog.Catalog, error) {
	if err := catalog.ValidateName(vendor, env); err != nil {
		return nil, err
	}
	key := vendor + ":" + env
	r.mu.RLock()
	c, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return c.Clone(), nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok = r.cache[key]
	if ok {
		return c.Clone(), nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	candidates := make([]string, 0, 4)
	if env != "" {
		candidates = append(candidates, vendor+"."+env+".yaml", vendor+"."+env+".yml")
	}
	candidates = append(candidates, vendor+".yaml", vendor+".yml")
	for _, name := range candidates {
		c, err := catalog.ParseFile(filepath.Join(r.dir, name))
		if err == nil {
			r.cache[key] = c
			return c.Clone(), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("fileregistry: %s: %w", name, err)
		}
	}
	return nil, fmt.Errorf("%w: %q", catalog.ErrCatalogNotFound, vendor)
}

// Reload clears the cache (for hot-reload in development).
func (r *Registry) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*catalog.Catalog)
}
