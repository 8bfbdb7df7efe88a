package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// columnsSchema builds a JSON Schema for a fixed column set: a flat object
// whose values are strings, numbers or null, with no additional properties.
func columnsSchema(columns []string) (*jsonschema.Schema, error) {
	props := make(map[string]any, len(columns))
	for _, c := range columns {
		props[c] = map[string]any{
			"type": []string{"string", "number", "null"},
		}
	}
	doc := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}
	schema, err := jsonschema.CompileString("columns.schema.json", string(raw))
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	return schema, nil
}

// The column set is fixed for the life of the process, so the compiled
// schema is cached and reused across extractions.
var schemaCache struct {
	mu     sync.Mutex
	key    string
	schema *jsonschema.Schema
}

func compiledSchema(columns []string) (*jsonschema.Schema, error) {
	key := strings.Join(columns, "\x00")

	schemaCache.mu.Lock()
	defer schemaCache.mu.Unlock()
	if schemaCache.schema != nil && schemaCache.key == key {
		return schemaCache.schema, nil
	}

	schema, err := columnsSchema(columns)
	if err != nil {
		return nil, err
	}
	schemaCache.key = key
	schemaCache.schema = schema
	return schema, nil
}

// validateColumns checks a decoded record against the column-set schema.
// Violations are advisory: the caller conforms the record regardless, this
// exists so contract breaks by the model are visible in the logs.
func validateColumns(rec Record, columns []string) error {
	schema, err := compiledSchema(columns)
	if err != nil {
		return err
	}
	return schema.Validate(map[string]any(rec))
}
