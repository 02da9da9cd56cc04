package rpc

// inferSchema builds an advisory JSON-Schema-shaped map from a concrete
// sample value, for the `generateSchema` operation in spec.md §4.6. It
// infers structure only (type + properties/items); it never infers
// constraints like required or format.
func inferSchema(sample any) map[string]any {
	switch v := sample.(type) {
	case map[string]any:
		props := make(map[string]any, len(v))
		for k, val := range v {
			props[k] = inferSchema(val)
		}
		return map[string]any{"type": "object", "properties": props}
	case []any:
		if len(v) == 0 {
			return map[string]any{"type": "array", "items": map[string]any{}}
		}
		return map[string]any{"type": "array", "items": inferSchema(v[0])}
	case string:
		return map[string]any{"type": "string"}
	case bool:
		return map[string]any{"type": "boolean"}
	case float64, int, int64:
		return map[string]any{"type": "number"}
	case nil:
		return map[string]any{"type": "null"}
	default:
		return map[string]any{}
	}
}
