package rpc

import (
	"context"
	"testing"

	"apiflow/engine"
	"apiflow/store"
)

// fakeCaller is the façade-level test double for engine.HTTPCaller, same
// role as engine's stubCaller but kept local since rpc can't import an
// unexported test type from another package.
type fakeCaller struct {
	response any
}

func (f fakeCaller) Call(_ context.Context, cfg engine.ApiConfig, input any, credentials map[string]any, tenantID string, cacheMode engine.CacheMode) (engine.CallResult, error) {
	return engine.CallResult{Data: f.response, LastStatus: 200}, nil
}

func newTestFacade(response any) *Facade {
	evaluator := engine.NewExpressionEvaluator()
	stepRunner := engine.NewStepRunner(evaluator, fakeCaller{response: response}, 4)
	executor := engine.NewExecutor(evaluator, stepRunner)

	workflows := store.NewMemory[engine.Workflow]()
	apis := store.NewMemory[engine.ApiConfig]()
	runs := store.NewMemoryRunResults()
	tenants := store.NewTenants(store.NewMemory[engine.TenantInfo]())

	return NewFacade(executor, workflows, apis, runs, tenants)
}

func TestFacadeUpsertAndGetWorkflow(t *testing.T) {
	f := newTestFacade(map[string]any{"ok": true})
	ctx := context.Background()

	wf := engine.Workflow{ID: "wf1", Steps: []engine.Step{{ID: "s1", ApiConfig: engine.ApiConfig{URLHost: "http://x"}}}}
	if _, err := f.UpsertWorkflow(ctx, wf, "tenant-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := f.GetWorkflow(ctx, "wf1", "tenant-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != "wf1" {
		t.Errorf("got %v, want wf1", got)
	}
}

func TestFacadeExecuteWorkflowByIDPersistsRun(t *testing.T) {
	f := newTestFacade(map[string]any{"result": "ok"})
	ctx := context.Background()

	wf := engine.Workflow{
		ID:    "wf1",
		Steps: []engine.Step{{ID: "s1", ApiConfig: engine.ApiConfig{URLHost: "http://x"}, ResponseMapping: "result"}},
	}
	if _, err := f.UpsertWorkflow(ctx, wf, "tenant-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := f.ExecuteWorkflow(ctx, ExecuteRequest{
		WorkflowID: "wf1",
		Payload:    map[string]any{},
		TenantID:   "tenant-a",
		Persist:    true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}

	stored, err := f.GetRun(ctx, result.ID, "tenant-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored == nil {
		t.Fatal("expected the run to have been persisted")
	}
	if stored.ConfigID != "wf1" {
		t.Errorf("got configId=%q, want wf1", stored.ConfigID)
	}
}

func TestFacadeExecuteWorkflowInlineDoesNotRequireStorage(t *testing.T) {
	f := newTestFacade("raw-value")
	ctx := context.Background()

	wf := engine.Workflow{ID: "inline", Steps: []engine.Step{{ID: "s1", ApiConfig: engine.ApiConfig{URLHost: "http://x"}}}}

	result, err := f.ExecuteWorkflow(ctx, ExecuteRequest{
		Workflow: &wf,
		Payload:  map[string]any{},
		TenantID: "tenant-a",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}

	stored, err := f.GetRun(ctx, result.ID, "tenant-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored != nil {
		t.Error("expected the run to not be persisted when Persist is false")
	}
}

func TestFacadeExecuteWorkflowUnknownIDFails(t *testing.T) {
	f := newTestFacade(nil)
	_, err := f.ExecuteWorkflow(context.Background(), ExecuteRequest{WorkflowID: "missing", TenantID: "tenant-a"})
	if err == nil {
		t.Fatal("expected an error for an unknown workflow id")
	}
}

// TestFacadeExecuteWorkflowResolvesApiConfigByID exercises spec.md §3/§9's
// "apiConfig may reference an ApiConfig by id but the executor resolves and
// embeds a snapshot before execution" mechanism.
func TestFacadeExecuteWorkflowResolvesApiConfigByID(t *testing.T) {
	f := newTestFacade(map[string]any{"result": "ok"})
	ctx := context.Background()

	if _, err := f.UpsertApi(ctx, engine.ApiConfig{ID: "api1", URLHost: "http://x", Method: engine.MethodGET}, "tenant-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wf := engine.Workflow{
		ID:    "wf-by-id",
		Steps: []engine.Step{{ID: "s1", ApiConfigID: "api1", ResponseMapping: "result"}},
	}

	result, err := f.ExecuteWorkflow(ctx, ExecuteRequest{
		Workflow: &wf,
		Payload:  map[string]any{},
		TenantID: "tenant-a",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
}

// TestFacadeExecuteWorkflowUnknownApiConfigIDFails confirms a dangling
// apiConfigId reference is rejected before execution rather than failing
// with a confusing downstream binding error.
func TestFacadeExecuteWorkflowUnknownApiConfigIDFails(t *testing.T) {
	f := newTestFacade(nil)
	ctx := context.Background()

	wf := engine.Workflow{
		ID:    "wf-bad-ref",
		Steps: []engine.Step{{ID: "s1", ApiConfigID: "missing-api"}},
	}

	_, err := f.ExecuteWorkflow(ctx, ExecuteRequest{
		Workflow: &wf,
		Payload:  map[string]any{},
		TenantID: "tenant-a",
	})
	if err == nil {
		t.Fatal("expected an error for an unresolvable apiConfigId")
	}
}

func TestFacadeUpdateApiConfigId(t *testing.T) {
	f := newTestFacade(nil)
	ctx := context.Background()

	if _, err := f.UpsertApi(ctx, engine.ApiConfig{ID: "api-old", URLHost: "http://x"}, "tenant-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	renamed, err := f.UpdateApiConfigId(ctx, "api-old", "api-new", "tenant-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if renamed.ID != "api-new" {
		t.Errorf("got id=%q, want api-new", renamed.ID)
	}

	old, err := f.GetApi(ctx, "api-old", "tenant-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if old != nil {
		t.Error("expected the old api id to no longer exist")
	}
}
