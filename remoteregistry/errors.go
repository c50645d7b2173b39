package remoteregistry

import "errors"

var (
	// ErrFetchFailed wraps every transport and read failure of a Fetcher.
	ErrFetchFailed = errors.New("remoteregistry: fetch failed")
	// ErrHTTPStatus marks a non-2xx answer other than 404.
	ErrHTTPStatus = errors.New("remoteregistry: unexpected HTTP status")
	// ErrUnauthorized marks a 401 or 403 answer; the catalog token is missing or wrong.
	ErrUnauthorized = errors.New("remoteregistry: catalog source rejected credentials")
	// ErrNotFound means the source has no catalog for the vendor id.
	// Registry reports it as catalog.ErrCatalogNotFound.
	ErrNotFound = errors.New("remoteregistry: no catalog found")
)
