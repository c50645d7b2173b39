package embedregistry

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/skosovsky/aibridge/catalog"
)

// Ensures Registry implements catalog.Registry.
var _ catalog.Registry = (*Registry)(nil)

// Registry holds every YAML catalog of an fs.FS, loaded at construction (eager). No mutex.
type Registry struct {
	env   string
	cache map[string]*catalog.Catalog
}

// New walks fsys, parses every .yaml/.yml file under root, and returns a Registry.
// Key format: "vendor" for "vendor.yaml", "vendor:env" for "vendor.env.yaml".
func New(fsys fs.FS, root string, opts ...Option) (*Registry, error) {
	r := &Registry{cache: make(map[string]*catalog.Catalog)}
	for _, opt := range opts {
		opt(r)
	}
	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || (!strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml")) {
			return nil
		}
		c, err := catalog.ParseFS(fsys, path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		base := filepath.Base(path)
		name := strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml")
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			r.cache[name[:idx]+":"+name[idx+1:]] = c
		} else {
			r.cache[name+":"] = c
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Option configures a Registry.
type Option func(*Registry)

// WithEnvironment sets the environment used by Catalog.
func WithEnvironment(env string) Option {
	return func(r *Registry) { r.env = env }
}

// Catalog returns the catalog of vendor for the configured environment.
func (r *Registry) Catalog(ctx context.Context, vendor string) (*catalog.Catalog, error) {
	return r.CatalogEnv(ctx, vendor, r.env)
}

// CatalogEnv returns the catalog of vendor for env. O(1) map lookup.
// Prefers the vendor:env key and falls back to the base file.
func (r *Registry) CatalogEnv(ctx context.Context, vendor, env string) (*catalog.Catalog, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if c, ok := r.cache[vendor+":"+env]; ok {
		return c.Clone(), nil
	}
	if c, ok := r.cache[vendor+":"]; ok {
		return c.Clone(), nil
	}
	return nil, fmt.Errorf("%w: %q", catalog.ErrCatalogNotFound, vendor)
}

// Vendors lists the vendors with a base catalog.
func (r *Registry) Vendors() []string {
	var out []string
	for key := range r.cache {
		if vendor, ok := strings.CutSuffix(key, ":"); ok {
			out = append(out, vendor)
		}
	}
	return out
}
