package catalog

import (
	"fmt"
	"slices"
	"time"

	"github.com/skosovsky/aibridge"
)

// Catalog is the model list of one vendor, as declared in a YAML file:
//
//	vendor: openai
//	version: "2025-06"
//	models:
//	  - id: gpt-4o
//	    vision: true
//	    input_token_cost: 2.5
//	    output_token_cost: 10
type Catalog struct {
	Vendor  string                 `yaml:"vendor" validate:"required"`
	Version string                 `yaml:"version"`
	Models  []aibridge.ModelConfig `yaml:"models" validate:"required,min=1,dive"`
}

// Info describes a catalog without its models.
type Info struct {
	Vendor    string
	Version   string
	UpdatedAt time.Time
}

// Model returns the model with the given id.
func (c *Catalog) Model(id string) (aibridge.ModelConfig, error) {
	for _, m := range c.Models {
		if m.ID == id {
			return m, nil
		}
	}
	return aibridge.ModelConfig{}, fmt.Errorf("%w: %q in %q", ErrModelNotFound, id, c.Vendor)
}

// IDs returns the model ids in declaration order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.Models))
	for i, m := range c.Models {
		out[i] = m.ID
	}
	return out
}

// Clone returns a deep copy so cached catalogs stay immutable.
func (c *Catalog) Clone() *Catalog {
	if c == nil {
		return nil
	}
	out := &Catalog{Vendor: c.Vendor, Version: c.Version, Models: make([]aibridge.ModelConfig, len(c.Models))}
	for i, m := range c.Models {
		out.Models[i] = cloneModel(m)
	}
	return out
}

func cloneModel(m aibridge.ModelConfig) aibridge.ModelConfig {
	m.InputTokenCost = clonePtr(m.InputTokenCost)
	m.OutputTokenCost = clonePtr(m.OutputTokenCost)
	m.ImageOutputTokenCost = clonePtr(m.ImageOutputTokenCost)
	m.WebSearchCost = clonePtr(m.WebSearchCost)
	return m
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (c *Catalog) duplicateID() (string, bool) {
	seen := make([]string, 0, len(c.Models))
	for _, m := range c.Models {
		if slices.Contains(seen, m.ID) {
			return m.ID, true
		}
		seen = append(seen, m.ID)
	}
	return "", false
}
