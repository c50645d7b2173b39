package remoteregistry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/skosovsky/aibridge/catalog"
)

const defaultTTL = 5 * time.Minute

// detachCancel returns a context that is not cancelled when parent is cancelled,
// but still respects parent's deadline so fetches (e.g. git clone) do not hang.
// The caller should call the returned cancel when done to release the deadline timer.
func detachCancel(parent context.Context) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(parent)
	if dl, ok := parent.Deadline(); ok {
		return context.WithDeadline(ctx, dl)
	}
	return context.WithCancel(ctx)
}

// Ensures Registry implements catalog.Registry.
var _ catalog.Registry = (*Registry)(nil)

type cacheEntry struct {
	catalog   *catalog.Catalog
	expiresAt time.Time
}

func (r *Registry) cacheEntryValid(ent *cacheEntry, now time.Time) bool {
	return r.ttl <= 0 || now.Before(ent.expiresAt)
}

// Registry loads vendor catalogs via a Fetcher and caches them with TTL.
// Concurrent misses for the same id share one fetch. Catalog returns a cloned catalog.
type Registry struct {
	fetcher      Fetcher
	ttl          time.Duration
	staleOnError bool
	fallback     catalog.Registry
	mu           sync.RWMutex
	cache        map[string]*cacheEntry
	sf           singleflight.Group
}

// New creates a Registry that uses the given Fetcher. Options configure caching and fallbacks.
// Panics if fetcher is nil.
func New(fetcher Fetcher, opts ...Option) *Registry {
	if fetcher == nil {
		panic("remoteregistry: Fetcher must not be nil")
	}
	r := &Registry{
		fetcher: fetcher,
		ttl:     defaultTTL,
		cache:   make(map[string]*cacheEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// stale returns the cached catalog for id regardless of expiry.
func (r *Registry) stale(id string) (*catalog.Catalog, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ent, ok := r.cache[id]; ok {
		return ent.catalog.Clone(), true
	}
	return nil, false
}

func (r *Registry) cached(id string) (*catalog.Catalog, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ent, ok := r.cache[id]
	if ok && r.cacheEntryValid(ent, time.Now()) {
		return ent.catalog.Clone(), true
	}
	return nil, false
}

// Catalog returns the catalog for id. Uses the TTL cache; on miss or expiry, fetches via Fetcher.
// id must pass ValidateID. When the fetched catalog has no version and Fetcher implements Statter,
// the version is taken from Stat.
func (r *Registry) Catalog(ctx context.Context, id string) (*catalog.Catalog, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if c, ok := r.cached(id); ok {
		return c, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	v, err, _ := r.sf.Do(id, func() (any, error) {
		fetchCtx, cancel := detachCancel(ctx)
		defer cancel()
		data, err := r.fetcher.Fetch(fetchCtx, id)
		if err != nil {
			return nil, err
		}
		c, err := catalog.ParseBytes(data)
		if err != nil {
			return nil, err
		}
		if statter, ok := r.fetcher.(Statter); ok && c.Version == "" {
			if info, statErr := statter.Stat(fetchCtx, id); statErr == nil {
				c.Version = info.Version
			}
		}
		r.mu.Lock()
		expiresAt := time.Now().Add(r.ttl)
		if r.ttl <= 0 {
			expiresAt = time.Time{}
		}
		r.cache[id] = &cacheEntry{catalog: c, expiresAt: expiresAt}
		r.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return r.afterFailure(ctx, id, err)
	}
	return v.(*catalog.Catalog).Clone(), nil
}

// afterFailure serves id after a failed fetch: an expired copy when WithStaleOnError is set,
// then the fallback registry. Otherwise err is returned, with ErrNotFound reported as
// catalog.ErrCatalogNotFound.
func (r *Registry) afterFailure(ctx context.Context, id string, err error) (*catalog.Catalog, error) {
	notFound := errors.Is(err, ErrNotFound)
	if r.staleOnError && !notFound {
		if c, ok := r.stale(id); ok {
			return c, nil
		}
	}
	if r.fallback != nil {
		if c, fbErr := r.fallback.Catalog(ctx, id); fbErr == nil {
			return c, nil
		}
	}
	if notFound {
		return nil, fmt.Errorf("%w: %q: %w", catalog.ErrCatalogNotFound, id, err)
	}
	return nil, err
}

// List returns catalog ids from the Fetcher if it implements Lister; otherwise returns nil, nil.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if lister, ok := r.fetcher.(Lister); ok {
		return lister.ListIDs(ctx)
	}
	return nil, nil
}

// Stat returns catalog metadata from the Fetcher if it implements Statter; otherwise returns ErrCatalogNotFound.
func (r *Registry) Stat(ctx context.Context, id string) (catalog.Info, error) {
	if err := ValidateID(id); err != nil {
		return catalog.Info{}, err
	}
	if ctx.Err() != nil {
		return catalog.Info{}, ctx.Err()
	}
	if statter, ok := r.fetcher.(Statter); ok {
		return statter.Stat(ctx, id)
	}
	return catalog.Info{}, fmt.Errorf("%w: %q", catalog.ErrCatalogNotFound, id)
}

// Evict removes one catalog from the cache by id. Safe for concurrent use.
func (r *Registry) Evict(id string) {
	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()
}

// EvictAll clears the entire cache. Safe for concurrent use.
func (r *Registry) EvictAll() {
	r.mu.Lock()
	r.cache = make(map[string]*cacheEntry)
	r.mu.Unlock()
}

// Close calls Close on the underlying Fetcher if it implements the interface.
// Use this to clean up resources (e.g. git.Fetcher removes the local clone).
func (r *Registry) Close() error {
	if c, ok := r.fetcher.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
