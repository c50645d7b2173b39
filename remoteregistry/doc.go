// Package remoteregistry provides a remote model catalog registry that loads YAML catalogs
// via a Fetcher (HTTP or Git). It caches catalogs with a configurable TTL, de-duplicates
// concurrent fetches and supports Bearer token authentication. A failed refresh can fall back
// to the expired copy (WithStaleOnError) or to another registry (WithFallback).
package remoteregistry
