// Package rpc implements the RPC Façade (C6): a typed operation surface
// equivalent to the GraphQL contract in spec.md §4.6, sitting in front of
// the Workflow Executor and Data Store.
package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"apiflow/engine"
	"apiflow/store"
)

// Facade wires the Workflow Executor to the Data Store and exposes the
// query/mutation/subscription surface an adapter (HTTP, GraphQL, CLI) calls
// into. It owns no transport concerns of its own.
type Facade struct {
	executor   *engine.Executor
	workflows  store.EntityStore[engine.Workflow]
	apis       store.EntityStore[engine.ApiConfig]
	runs       store.RunResults
	tenants    *store.Tenants[engine.TenantInfo]
	logs       *LogBroadcaster
	samples    *engine.SampleCache
}

func NewFacade(
	executor *engine.Executor,
	workflows store.EntityStore[engine.Workflow],
	apis store.EntityStore[engine.ApiConfig],
	runs store.RunResults,
	tenants *store.Tenants[engine.TenantInfo],
) *Facade {
	return &Facade{
		executor:  executor,
		workflows: workflows,
		apis:      apis,
		runs:      runs,
		tenants:   tenants,
		logs:      NewLogBroadcaster(),
		samples:   engine.NewSampleCache(),
	}
}

// --- Queries ---

func (f *Facade) GetWorkflow(ctx context.Context, id, tenant string) (*engine.Workflow, error) {
	return f.workflows.Get(ctx, id, tenant)
}

func (f *Facade) ListWorkflows(ctx context.Context, limit, offset int, tenant string) (store.Page[engine.Workflow], error) {
	return f.workflows.List(ctx, limit, offset, tenant)
}

func (f *Facade) GetApi(ctx context.Context, id, tenant string) (*engine.ApiConfig, error) {
	return f.apis.Get(ctx, id, tenant)
}

func (f *Facade) ListApis(ctx context.Context, limit, offset int, tenant string) (store.Page[engine.ApiConfig], error) {
	return f.apis.List(ctx, limit, offset, tenant)
}

func (f *Facade) GetRun(ctx context.Context, id, tenant string) (*engine.RunResult, error) {
	return f.runs.Get(ctx, id, tenant)
}

// ListRuns lists RunResults, optionally scoped to one workflow/ApiConfig id
// via configId, per spec.md §4.6's `listRuns(configId?)`.
func (f *Facade) ListRuns(ctx context.Context, configID string, limit, offset int, tenant string) (store.Page[engine.RunResult], error) {
	if configID == "" {
		return f.runs.List(ctx, limit, offset, tenant)
	}
	return f.runs.ListByConfig(ctx, configID, limit, offset, tenant)
}

func (f *Facade) GetTenantInfo(ctx context.Context, tenant string) (*engine.TenantInfo, error) {
	return f.tenants.Get(ctx, tenant)
}

// GenerateSchema is advisory per spec.md §4.6: it infers a JSON-schema
// shape from a workflow's last cached sample run, rather than executing.
func (f *Facade) GenerateSchema(ctx context.Context, tenant, workflowID string) (map[string]any, error) {
	sample, ok := f.samples.Get(tenant, workflowID)
	if !ok {
		return nil, fmt.Errorf("rpc: no cached sample for workflow %q", workflowID)
	}
	return inferSchema(sample), nil
}

// GenerateInstructions is advisory per spec.md §4.6: a human-readable
// summary of a workflow's steps, for display in an authoring UI.
func (f *Facade) GenerateInstructions(ctx context.Context, wf engine.Workflow) string {
	out := fmt.Sprintf("Workflow %q runs %d step(s):\n", wf.ID, len(wf.Steps))
	for i, step := range wf.Steps {
		mode := "a single call"
		if step.ExecutionMode == engine.ModeLoop {
			mode = fmt.Sprintf("a loop over %q", step.LoopSelector)
		}
		out += fmt.Sprintf("  %d. %s: %s %s via %s\n", i+1, step.ID, step.ApiConfig.Method, step.ApiConfig.URLPath, mode)
	}
	return out
}

// --- Mutations ---

func (f *Facade) UpsertWorkflow(ctx context.Context, wf engine.Workflow, tenant string) (*engine.Workflow, error) {
	if err := ValidateWorkflow(wf); err != nil {
		return nil, err
	}
	if err := wf.ApplyDefaults(); err != nil {
		return nil, engine.WrapError(engine.KindValidation, "", err)
	}
	return f.workflows.Upsert(ctx, wf.ID, wf, tenant)
}

func (f *Facade) DeleteWorkflow(ctx context.Context, id, tenant string) (bool, error) {
	return f.workflows.Delete(ctx, id, tenant)
}

func (f *Facade) UpsertApi(ctx context.Context, api engine.ApiConfig, tenant string) (*engine.ApiConfig, error) {
	if api.ID == "" {
		return nil, engine.NewError(engine.KindValidation, "", "api id is required")
	}
	if err := api.ApplyDefaults(); err != nil {
		return nil, engine.WrapError(engine.KindValidation, "", err)
	}
	return f.apis.Upsert(ctx, api.ID, api, tenant)
}

func (f *Facade) DeleteApi(ctx context.Context, id, tenant string) (bool, error) {
	return f.apis.Delete(ctx, id, tenant)
}

// UpdateApiConfigId renames an ApiConfig's id in place, preserving its
// tenant scope and body, per spec.md §4.6.
func (f *Facade) UpdateApiConfigId(ctx context.Context, oldID, newID, tenant string) (*engine.ApiConfig, error) {
	existing, err := f.apis.Get(ctx, oldID, tenant)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, engine.NewError(engine.KindValidation, "", fmt.Sprintf("api %q not found", oldID))
	}
	existing.ID = newID
	if _, err := f.apis.Upsert(ctx, newID, *existing, tenant); err != nil {
		return nil, err
	}
	if _, err := f.apis.Delete(ctx, oldID, tenant); err != nil {
		return nil, err
	}
	return existing, nil
}

// ExecuteRequest bundles the inputs a caller may supply to executeWorkflow:
// either an inline workflow (Workflow) or a stored workflow id (WorkflowID).
type ExecuteRequest struct {
	WorkflowID  string
	Workflow    *engine.Workflow
	Payload     any
	Credentials any
	TenantID    string
	CacheMode   engine.CacheMode
	Timeout     time.Duration
	Persist     bool
}

// ExecuteWorkflow resolves the workflow (inline or by id), drives the
// Workflow Executor, optionally persists the RunResult, and always returns
// the full RunResult regardless of persistence outcome, per spec.md §4.5.
func (f *Facade) ExecuteWorkflow(ctx context.Context, req ExecuteRequest) (engine.RunResult, error) {
	payload, err := coerceJSONish(req.Payload)
	if err != nil {
		return engine.RunResult{}, engine.WrapError(engine.KindValidation, "", err)
	}
	credentials, err := coerceCredentials(req.Credentials)
	if err != nil {
		return engine.RunResult{}, engine.WrapError(engine.KindValidation, "", err)
	}

	wf, err := f.resolveWorkflow(ctx, req)
	if err != nil {
		return engine.RunResult{}, err
	}
	if err := f.resolveApiConfigs(ctx, wf, req.TenantID); err != nil {
		return engine.RunResult{}, err
	}
	if err := ValidateWorkflow(*wf); err != nil {
		return engine.RunResult{}, err
	}

	sink := f.logs.SinkFor(uuid.New().String())
	defer sink.Close()
	sink.Emit(LogEntry{Level: "info", Message: fmt.Sprintf("executing workflow %q", wf.ID)})

	result := f.executor.Execute(ctx, *wf, payload, engine.RunOptions{
		TenantID:    req.TenantID,
		Credentials: credentials,
		CacheMode:   req.CacheMode,
		Timeout:     req.Timeout,
	})
	result.ConfigID = wf.ID

	if req.Persist {
		if _, persistErr := f.runs.Upsert(ctx, result.ID, result, req.TenantID); persistErr != nil {
			sink.Emit(LogEntry{Level: "error", Message: "failed to persist run: " + persistErr.Error()})
		}
	}

	if result.Success {
		f.samples.Put(req.TenantID, wf.ID, result.Data)
	}

	level := "info"
	if !result.Success {
		level = "error"
	}
	sink.Emit(LogEntry{Level: level, Message: fmt.Sprintf("workflow %q finished success=%v", wf.ID, result.Success)})

	return result, nil
}

func (f *Facade) resolveWorkflow(ctx context.Context, req ExecuteRequest) (*engine.Workflow, error) {
	if req.Workflow != nil {
		wf := *req.Workflow
		return &wf, wf.ApplyDefaults()
	}
	if req.WorkflowID == "" {
		return nil, engine.NewError(engine.KindValidation, "", "either workflow or id is required")
	}
	wf, err := f.workflows.Get(ctx, req.WorkflowID, req.TenantID)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, engine.NewError(engine.KindValidation, "", fmt.Sprintf("workflow %q not found", req.WorkflowID))
	}
	return wf, nil
}

// resolveApiConfigs implements spec.md §3/§9's "apiConfig may reference an
// ApiConfig by id but the executor resolves and embeds a snapshot before
// execution": any Step whose ApiConfigID is set is fetched from the Data
// Store (C3) and its ApiConfig embedded in place, so engine.Executor itself
// never needs a store dependency. A step with neither ApiConfigID nor an
// inline URLHost is left for ValidateWorkflow to reject.
func (f *Facade) resolveApiConfigs(ctx context.Context, wf *engine.Workflow, tenant string) error {
	for i := range wf.Steps {
		step := &wf.Steps[i]
		if step.ApiConfigID == "" {
			continue
		}
		api, err := f.apis.Get(ctx, step.ApiConfigID, tenant)
		if err != nil {
			return err
		}
		if api == nil {
			return engine.NewError(engine.KindValidation, step.ID, fmt.Sprintf("apiConfig %q not found", step.ApiConfigID))
		}
		step.ApiConfig = *api
	}
	return nil
}

// BuildWorkflow is advisory per spec.md §4.6 ("out of core scope, listed for
// completeness"): it assembles a skeletal single-step Workflow from a free
// text instruction rather than invoking any LLM.
func (f *Facade) BuildWorkflow(instruction string, systems []string, schema map[string]any) engine.Workflow {
	wf := engine.Workflow{
		ID:             "draft-" + uuid.New().String(),
		FinalTransform: "$",
		ResponseSchema: schema,
	}
	if len(systems) > 0 {
		wf.Steps = []engine.Step{{
			ID: "step1",
			ApiConfig: engine.ApiConfig{
				URLHost:     systems[0],
				Method:      engine.MethodGET,
				Instruction: instruction,
			},
		}}
	}
	return wf
}

// Subscribe returns the façade's log channel for one run id, per spec.md
// §4.6's `logs` subscription.
func (f *Facade) Subscribe(runID string) <-chan LogEntry {
	return f.logs.Subscribe(runID)
}
