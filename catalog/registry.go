package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/skosovsky/aibridge"
)

// Registry resolves vendor catalogs. Implementations return a copy the caller may modify.
type Registry interface {
	Catalog(ctx context.Context, vendor string) (*Catalog, error)
}

// Lookup returns the configuration of model from the catalog of vendor.
func Lookup(ctx context.Context, reg Registry, vendor, model string) (aibridge.ModelConfig, error) {
	c, err := reg.Catalog(ctx, vendor)
	if err != nil {
		return aibridge.ModelConfig{}, err
	}
	return c.Model(model)
}

// ValidateName checks that a vendor or environment name is safe for file paths and cache keys.
// Empty env is allowed; an empty vendor is not.
func ValidateName(vendor, env string) error {
	if vendor == "" {
		return fmt.Errorf("%w: empty vendor", ErrInvalidName)
	}
	for _, s := range []string{vendor, env} {
		if strings.ContainsAny(s, `/\:`) || strings.Contains(s, "..") || strings.HasPrefix(s, ".") {
			return fmt.Errorf("%w: %q", ErrInvalidName, s)
		}
	}
	return nil
}
