package catalog

import (
	"errors"
	"fmt"
)

// Sentinel errors for catalog operations.
// All use prefix "catalog:" for identification. Callers should use errors.Is/errors.As.
var (
	ErrInvalidCatalog  = errors.New("catalog: invalid catalog")
	ErrCatalogNotFound = errors.New("catalog: catalog not found")
	ErrModelNotFound   = errors.New("catalog: model not found")
	ErrInvalidName     = errors.New("catalog: invalid vendor or environment name")
)

// ValidationError reports a catalog field that failed validation.
// Use errors.Is(err, ErrInvalidCatalog) and errors.As(err, &valErr) to inspect.
type ValidationError struct {
	Field string // Namespaced field, e.g. "Catalog.Models[1].ID"
	Rule  string // Failed rule, e.g. "required"
}

// Error implements error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("catalog: field %s failed %q", e.Field, e.Rule)
}

// Unwrap returns ErrInvalidCatalog for errors.Is.
func (e *ValidationError) Unwrap() error { return ErrInvalidCatalog }
