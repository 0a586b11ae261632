// Package schema holds the prompts used for structured document analysis.
package schema

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

//go:embed schemas.yaml
var builtin []byte

type Catalog struct {
	schemas map[domain.SchemaType]domain.AnalysisSchema
}

// Load parses the built-in catalog.
func Load() (*Catalog, error) {
	return Parse(builtin)
}

func Parse(raw []byte) (*Catalog, error) {
	var list []domain.AnalysisSchema
	if err := yaml.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("parse schema catalog: %w", err)
	}
	c := &Catalog{schemas: make(map[domain.SchemaType]domain.AnalysisSchema, len(list))}
	for _, s := range list {
		if !s.Type.Valid() {
			return nil, fmt.Errorf("parse schema catalog: unknown schema type %q", s.Type)
		}
		if len(s.Fields) == 0 {
			return nil, fmt.Errorf("parse schema catalog: %s has no fields", s.Type)
		}
		if _, dup := c.schemas[s.Type]; dup {
			return nil, fmt.Errorf("parse schema catalog: duplicate schema %s", s.Type)
		}
		c.schemas[s.Type] = s
	}
	return c, nil
}

func (c *Catalog) Lookup(schemaType domain.SchemaType) (domain.AnalysisSchema, error) {
	s, ok := c.schemas[schemaType]
	if !ok {
		return domain.AnalysisSchema{}, domain.WrapError(domain.ErrNotFound, "lookup schema", fmt.Errorf("schema %s", schemaType))
	}
	return s, nil
}
