// Package catalog parses YAML model catalogs into aibridge.ModelConfig values and defines the
// Registry interface implemented by fileregistry, embedregistry and remoteregistry.
package catalog
