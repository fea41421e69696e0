package schema

import (
	"embed"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/US-JOET/ev-chart-open-source-sub001/internal/domain"
)

//go:embed definitions/*.yaml
var definitionsFS embed.FS

// StaticSource loads the per-category definitions embedded in the binary.
// This is the legacy schema source; it ships one YAML document per category.
type StaticSource struct{}

// Load parses every embedded definition file.
func (StaticSource) Load() (map[string]domain.CategorySchema, error) {
	entries, err := fs.ReadDir(definitionsFS, "definitions")
	if err != nil {
		return nil, fmt.Errorf("reading embedded definitions: %w", err)
	}

	schemas := make(map[string]domain.CategorySchema, len(entries))
	for _, entry := range entries {
		data, err := fs.ReadFile(definitionsFS, "definitions/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading definition %s: %w", entry.Name(), err)
		}
		var cs domain.CategorySchema
		if err := yaml.Unmarshal(data, &cs); err != nil {
			return nil, fmt.Errorf("parsing definition %s: %w", entry.Name(), err)
		}
		if _, dup := schemas[cs.CategoryID]; dup {
			return nil, fmt.Errorf("category %q defined more than once", cs.CategoryID)
		}
		schemas[cs.CategoryID] = cs
	}
	return schemas, nil
}
