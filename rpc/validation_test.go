package rpc

import (
	"testing"

	"apiflow/engine"
)

func TestValidateWorkflowRequiresID(t *testing.T) {
	err := ValidateWorkflow(engine.Workflow{Steps: []engine.Step{{ID: "s1"}}})
	if err == nil {
		t.Fatal("expected an error for a workflow with no id")
	}
}

func TestValidateWorkflowRequiresAtLeastOneStep(t *testing.T) {
	err := ValidateWorkflow(engine.Workflow{ID: "wf1"})
	if err == nil {
		t.Fatal("expected an error for a workflow with no steps")
	}
}

func TestValidateWorkflowRejectsDuplicateStepIDs(t *testing.T) {
	err := ValidateWorkflow(engine.Workflow{
		ID: "wf1",
		Steps: []engine.Step{
			{ID: "s1", ApiConfig: engine.ApiConfig{URLHost: "http://x"}},
			{ID: "s1", ApiConfig: engine.ApiConfig{URLHost: "http://x"}},
		},
	})
	if err == nil {
		t.Fatal("expected an error for duplicate step ids")
	}
}

func TestValidateWorkflowRejectsLoopWithoutSelector(t *testing.T) {
	err := ValidateWorkflow(engine.Workflow{
		ID:    "wf1",
		Steps: []engine.Step{{ID: "s1", ExecutionMode: engine.ModeLoop}},
	})
	if err == nil {
		t.Fatal("expected an error for a LOOP step with no loopSelector")
	}
}

func TestValidateWorkflowAccepts(t *testing.T) {
	err := ValidateWorkflow(engine.Workflow{
		ID:    "wf1",
		Steps: []engine.Step{{ID: "s1"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCoerceJSONishAcceptsObjectAndString(t *testing.T) {
	obj, err := coerceJSONish(map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj.(map[string]any)["a"] != 1 {
		t.Errorf("got %v, want a=1", obj)
	}

	parsed, err := coerceJSONish(`{"a": 2}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.(map[string]any)["a"] != float64(2) {
		t.Errorf("got %v, want a=2", parsed)
	}
}

func TestCoerceCredentialsRejectsNonObject(t *testing.T) {
	_, err := coerceCredentials(`"not an object"`)
	if err == nil {
		t.Fatal("expected an error for non-object credentials")
	}
}
