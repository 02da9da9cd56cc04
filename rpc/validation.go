package rpc

import (
	"encoding/json"

	"apiflow/engine"
)

// ValidateWorkflow checks the pre-execution constraints from spec.md
// §4.6: workflow id present, step ids unique, at least one step active.
func ValidateWorkflow(wf engine.Workflow) error {
	if wf.ID == "" {
		return engine.NewError(engine.KindValidation, "", "workflow id is required")
	}
	if len(wf.Steps) == 0 {
		return engine.NewError(engine.KindValidation, "", "workflow must have at least one step")
	}

	seen := make(map[string]bool, len(wf.Steps))
	for _, step := range wf.Steps {
		if step.ID == "" {
			return engine.NewError(engine.KindValidation, "", "step id is required")
		}
		if seen[step.ID] {
			return engine.NewError(engine.KindValidation, step.ID, "duplicate step id")
		}
		seen[step.ID] = true

		if step.ExecutionMode == engine.ModeLoop && step.LoopSelector == "" {
			return engine.NewError(engine.KindValidation, step.ID, "loopSelector is required when executionMode is LOOP")
		}

		if step.ApiConfigID == "" && step.ApiConfig.URLHost == "" {
			return engine.NewError(engine.KindValidation, step.ID, "step requires either apiConfigId or an inline apiConfig.urlHost")
		}
	}
	return nil
}

// coerceJSONish accepts either a JSON object/value or a JSON-encoded
// string and normalizes to a Go value, per spec.md §4.6: "payload and
// credentials accept either a JSON object or a string (parsed on ingest)".
func coerceJSONish(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	if s == "" {
		return map[string]any{}, nil
	}
	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

// coerceCredentials applies the same object-or-string acceptance as
// coerceJSONish, but always normalizes to a map since credentials are
// looked up by key.
func coerceCredentials(v any) (map[string]any, error) {
	parsed, err := coerceJSONish(v)
	if err != nil {
		return nil, err
	}
	switch m := parsed.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return m, nil
	default:
		return nil, engine.NewError(engine.KindValidation, "", "credentials must be an object")
	}
}
