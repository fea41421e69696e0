package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/US-JOET/ev-chart-open-source-sub001/internal/domain"
)

// dynamicContract is the JSON Schema the centralized document must satisfy
// before it is trusted as a schema source.
const dynamicContract = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["categories"],
  "properties": {
    "categories": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["category_id", "name", "cadence", "fields", "unique_key_fields"],
        "properties": {
          "category_id": {"type": "string", "minLength": 1},
          "name": {"type": "string", "minLength": 1},
          "cadence": {"enum": ["one-time", "annual", "quarterly"]},
          "unique_key_fields": {"type": "array", "items": {"type": "string"}, "minItems": 1},
          "nullable_key_fields": {"type": "array", "items": {"type": "string"}},
          "fields": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["name", "type"],
              "properties": {
                "name": {"type": "string", "minLength": 1},
                "type": {"enum": ["string", "integer", "decimal", "boolean", "datetime"]},
                "required": {"type": "boolean"},
                "recommended": {"type": "boolean"},
                "required_empty_allowed": {"type": "boolean"},
                "max_length": {"type": "integer", "minimum": 0},
                "exact_length": {"type": "integer", "minimum": 0},
                "max_precision": {"type": "integer", "minimum": 0},
                "max_scale": {"type": "integer", "minimum": 0},
                "min_value": {"type": "string"}
              }
            }
          }
        }
      }
    }
  }
}`

// DynamicSource loads the centralized schema document maintained by the
// configuration service. The document is contract-validated before any
// schema from it is served.
type DynamicSource struct {
	Path string
}

type dynamicDocument struct {
	Categories []domain.CategorySchema `json:"categories"`
}

// Load reads, contract-validates, and decodes the schema document.
func (s DynamicSource) Load() (map[string]domain.CategorySchema, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("reading schema document: %w", err)
	}

	contract, err := jsonschema.CompileString("schema-document.json", dynamicContract)
	if err != nil {
		return nil, fmt.Errorf("compiling schema-document contract: %w", err)
	}

	var raw any
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing schema document: %w", err)
	}
	if err := contract.Validate(raw); err != nil {
		return nil, fmt.Errorf("schema document violates contract: %w", err)
	}

	var doc dynamicDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding schema document: %w", err)
	}

	schemas := make(map[string]domain.CategorySchema, len(doc.Categories))
	for _, cs := range doc.Categories {
		if _, dup := schemas[cs.CategoryID]; dup {
			return nil, fmt.Errorf("category %q defined more than once", cs.CategoryID)
		}
		schemas[cs.CategoryID] = cs
	}
	return schemas, nil
}
