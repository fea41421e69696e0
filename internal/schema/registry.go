// Package schema loads and serves the per-category reporting schemas. The
// registry is built once at process start and is immutable afterwards, so
// concurrent stage invocations read it without coordination.
package schema

import (
	"fmt"

	"github.com/US-JOET/ev-chart-open-source-sub001/internal/domain"
	"github.com/US-JOET/ev-chart-open-source-sub001/pkg/faults"
)

// Source produces the full category schema set. The static source reads the
// embedded per-category definitions; the dynamic source reads the centralized
// schema document. Both must satisfy the same contract.
type Source interface {
	Load() (map[string]domain.CategorySchema, error)
}

// Registry serves immutable category schemas by id.
type Registry struct {
	schemas map[string]domain.CategorySchema
}

// NewRegistry loads all schemas from the source and verifies their internal
// consistency. Callers never observe a partially loaded registry: any defect
// fails construction.
func NewRegistry(source Source) (*Registry, error) {
	schemas, err := source.Load()
	if err != nil {
		return nil, fmt.Errorf("loading category schemas: %w", err)
	}
	if len(schemas) == 0 {
		return nil, fmt.Errorf("schema source yielded no categories")
	}
	for id, cs := range schemas {
		if err := checkSchema(id, cs); err != nil {
			return nil, err
		}
	}
	return &Registry{schemas: schemas}, nil
}

// CategorySchema returns the schema for the given category id.
func (r *Registry) CategorySchema(categoryID string) (domain.CategorySchema, error) {
	cs, ok := r.schemas[categoryID]
	if !ok {
		return domain.CategorySchema{}, faults.New(faults.ErrSchemaNotFound, "category %q", categoryID)
	}
	return cs, nil
}

// Categories returns the known category ids.
func (r *Registry) Categories() []string {
	ids := make([]string, 0, len(r.schemas))
	for id := range r.schemas {
		ids = append(ids, id)
	}
	return ids
}

func checkSchema(id string, cs domain.CategorySchema) error {
	if cs.CategoryID != id {
		return fmt.Errorf("schema %q declares mismatched category id %q", id, cs.CategoryID)
	}
	if len(cs.Fields) == 0 {
		return fmt.Errorf("schema %q has no fields", id)
	}
	seen := make(map[string]struct{}, len(cs.Fields))
	for _, f := range cs.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema %q has a field without a name", id)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("schema %q declares field %q twice", id, f.Name)
		}
		seen[f.Name] = struct{}{}
		switch f.Type {
		case domain.DataTypeString, domain.DataTypeInteger, domain.DataTypeDecimal,
			domain.DataTypeBoolean, domain.DataTypeDatetime:
		default:
			return fmt.Errorf("schema %q field %q has unsupported type %q", id, f.Name, f.Type)
		}
	}
	for _, key := range cs.UniqueKeyFields {
		if _, ok := seen[key]; !ok {
			return fmt.Errorf("schema %q unique key field %q is not defined", id, key)
		}
	}
	for _, key := range cs.NullableKeyFields {
		found := false
		for _, k := range cs.UniqueKeyFields {
			if k == key {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("schema %q nullable key field %q is not a unique key field", id, key)
		}
	}
	return nil
}
