package remoteregistry

import (
	"time"

	"github.com/skosovsky/aibridge/catalog"
)

// Option configures a Registry.
type Option func(*Registry)

// WithTTL sets how long a fetched catalog is served from memory. The default is 5 minutes;
// d <= 0 caches forever.
func WithTTL(d time.Duration) Option {
	return func(r *Registry) { r.ttl = d }
}

// WithStaleOnError keeps serving an expired catalog when refreshing it fails.
func WithStaleOnError() Option {
	return func(r *Registry) { r.staleOnError = true }
}

// WithFallback consults reg for vendors the Fetcher cannot serve, whether the catalog is
// missing remotely or the fetch fails with nothing cached. Typical fallbacks are an
// embedregistry compiled into the binary or a local fileregistry.
func WithFallback(reg catalog.Registry) Option {
	return func(r *Registry) { r.fallback = reg }
}
