package remoteregistry

import (
	"context"

	"github.com/skosovsky/aibridge/catalog"
)

// Fetcher returns the raw YAML of one vendor catalog. The id is a vendor name, optionally
// followed by an environment ("openai", "openai.prod").
//
// Implementations return an error wrapping ErrNotFound for an unknown id and ErrFetchFailed
// for anything else.
type Fetcher interface {
	Fetch(ctx context.Context, id string) ([]byte, error)
}

// FetcherFunc adapts a plain function to Fetcher.
type FetcherFunc func(ctx context.Context, id string) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, id string) ([]byte, error) { return f(ctx, id) }

// Lister is implemented by fetchers that can enumerate their catalogs.
type Lister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// Statter is implemented by fetchers that can report a catalog version cheaply,
// e.g. from a Last-Modified header or a commit hash.
type Statter interface {
	Stat(ctx context.Context, id string) (catalog.Info, error)
}

// ValidateID applies the catalog naming rules to a vendor id with an optional environment suffix.
func ValidateID(id string) error {
	return catalog.ValidateName(id, "")
}

// CandidatePaths lists the file names tried for id, .yaml before .yml.
func CandidatePaths(id string) []string {
	return []string{id + ".yaml", id + ".yml"}
}
