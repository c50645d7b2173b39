package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseBytes parses and validates a YAML catalog.
func ParseBytes(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	if err := Validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ParseFile reads and parses a catalog file.
func ParseFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is validated by caller
	if err != nil {
		return nil, fmt.Errorf("catalog: read file: %w", err)
	}
	return ParseBytes(data)
}

// ParseFS reads and parses a catalog from fs.FS (e.g. embed.FS).
func ParseFS(fsys fs.FS, name string) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("catalog: read fs: %w", err)
	}
	return ParseBytes(data)
}

// Validate checks struct rules (vendor set, at least one model, ids present, non-negative costs)
// and that model ids are unique.
func Validate(c *Catalog) error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ValidationError{Field: verrs[0].Namespace(), Rule: verrs[0].Tag()}
		}
		return fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	if id, dup := c.duplicateID(); dup {
		return fmt.Errorf("%w: duplicate model id %q", ErrInvalidCatalog, id)
	}
	return nil
}
