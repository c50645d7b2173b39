// Package git provides a Fetcher that reads YAML model catalogs from a Git repository.
// It clones the repo on first use and reads files from the working tree; later calls pull.
// The Fetcher also lists catalogs and reports the HEAD commit as catalog version, so
// remoteregistry.New(fetcher) gets List and Stat for free.
package git
