package engine

import (
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// ValidateAgainstSchema validates data against a JSON-schema-shaped
// document (spec.md's responseSchema) using kin-openapi's openapi3.Schema,
// which is structurally compatible with plain JSON Schema for the
// type/properties/required/items vocabulary this spec needs. Using it
// gives SchemaValidationError a path-qualified diagnostic for free via
// openapi3's SchemaError, satisfying the "error mentions the violated
// path" requirement in spec.md §8.
func ValidateAgainstSchema(data any, schemaDoc map[string]any) error {
	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return fmt.Errorf("invalid schema document: %w", err)
	}

	var schema openapi3.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return fmt.Errorf("invalid schema document: %w", err)
	}

	value, err := roundTripJSON(data)
	if err != nil {
		return fmt.Errorf("cannot validate non-JSON value: %w", err)
	}

	if err := schema.VisitJSON(value); err != nil {
		if schemaErr, ok := err.(*openapi3.SchemaError); ok {
			return &Error{
				Kind:    KindSchemaValidation,
				Message: fmt.Sprintf("%s: %s", schemaErr.JSONPointer(), schemaErr.Reason),
				Cause:   err,
			}
		}
		return &Error{Kind: KindSchemaValidation, Message: err.Error(), Cause: err}
	}
	return nil
}

// roundTripJSON normalizes a Go value (as produced by expr-lang or a
// decoded HTTP response) into the plain JSON types openapi3.Schema.VisitJSON
// expects (map[string]interface{}, []interface{}, float64, string, bool, nil).
func roundTripJSON(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
