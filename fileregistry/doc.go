// Package fileregistry provides a filesystem-based model catalog registry that loads
// YAML catalogs on demand (lazy) and caches them. Use New to create a Registry;
// Catalog resolves a vendor to {dir}/{vendor}.{env}.yaml or .yml
// with fallback to {dir}/{vendor}.yaml.
package fileregistry
