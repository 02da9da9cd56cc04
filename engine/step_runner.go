package engine

import (
	"fmt"

	"github.com/sourcegraph/conc/pool"
)

// DefaultLoopParallelism is the bounded worker-pool size LOOP iterations
// fan out across when NewStepRunner is given a non-positive parallelism,
// per spec.md §4.4.
const DefaultLoopParallelism = 4

// StepRunner executes a single Step (DIRECT or LOOP) against an
// accumulated Execution context, producing its raw/transformed data
// (C4, spec.md §4.4).
type StepRunner struct {
	evaluator   *ExpressionEvaluator
	caller      HTTPCaller
	parallelism int
}

func NewStepRunner(evaluator *ExpressionEvaluator, caller HTTPCaller, parallelism int) *StepRunner {
	if parallelism <= 0 {
		parallelism = DefaultLoopParallelism
	}
	return &StepRunner{evaluator: evaluator, caller: caller, parallelism: parallelism}
}

// RunStep dispatches to DIRECT or LOOP execution and always returns a
// StepResult — even on failure — so the Workflow Executor can record it.
func (r *StepRunner) RunStep(exec *Execution, step Step, credentials map[string]any, cacheMode CacheMode) StepResult {
	if step.ExecutionMode == ModeLoop {
		return r.runLoop(exec, step, credentials, cacheMode)
	}
	return r.runDirect(exec, step.ID, step, exec.Values(), credentials, cacheMode)
}

// runDirect implements spec.md §4.4's DIRECT algorithm:
//  1. input ← evaluate(inputMapping, ctx)
//  2. raw ← httpCaller.call(apiConfig, input, credentials)
//  3. transformed ← evaluate(responseMapping, raw)
func (r *StepRunner) runDirect(exec *Execution, stepID string, step Step, ctx map[string]any, credentials map[string]any, cacheMode CacheMode) StepResult {
	inputMapping := step.InputMapping
	if inputMapping == "" {
		inputMapping = "$"
	}
	input, err := r.evaluator.Evaluate(inputMapping, ctx)
	if err != nil {
		return failedResult(stepID, err)
	}

	result, err := r.caller.Call(exec, step.ApiConfig, input, credentials, exec.TenantID, cacheMode)
	if err != nil {
		return failedResult(stepID, err)
	}

	responseMapping := step.ResponseMapping
	if responseMapping == "" {
		responseMapping = "$"
	}
	transformed, err := r.evaluateOverValue(responseMapping, result.Data)
	if err != nil {
		return failedResult(stepID, err)
	}

	return StepResult{
		StepID:          stepID,
		Success:         true,
		RawData:         result.Data,
		TransformedData: transformed,
	}
}

// evaluateOverValue evaluates expression against a raw (possibly
// non-object) value by wrapping it so expr-lang's environment always sees
// a map; a bare "$" still returns the raw value untouched.
func (r *StepRunner) evaluateOverValue(expression string, raw any) (any, error) {
	if expression == "" || expression == "$" {
		return raw, nil
	}
	if m, ok := raw.(map[string]any); ok {
		return r.evaluator.Evaluate(expression, m)
	}
	return r.evaluator.Evaluate(expression, map[string]any{"$": raw})
}

// runLoop implements spec.md §4.4's LOOP algorithm: evaluate the loop
// selector, truncate to loopMaxIters, then drive each iteration's DIRECT
// call with a bounded worker pool, preserving input order in the output.
func (r *StepRunner) runLoop(exec *Execution, step Step, credentials map[string]any, cacheMode CacheMode) StepResult {
	ctx := exec.Values()

	selected, err := r.evaluator.Evaluate(step.LoopSelector, ctx)
	if err != nil {
		return failedResult(step.ID, err)
	}

	items := toSequence(selected)
	requested := len(items)
	if step.LoopMaxIters > 0 && len(items) > step.LoopMaxIters {
		items = items[:step.LoopMaxIters]
	}

	if len(items) == 0 {
		return StepResult{
			StepID:              step.ID,
			Success:             true,
			RawData:             []any{},
			TransformedData:     []any{},
			IterationsRequested: requested,
			IterationsRun:       0,
		}
	}

	p := pool.NewWithResults[iterOutcome]().WithMaxGoroutines(r.parallelism)
	for idx, item := range items {
		idx, item := idx, item
		p.Go(func() iterOutcome {
			iterCtx := exec.Store.Clone()
			iterCtx.Set("loopValue", item)
			iterCtx.Set("loopIndex", idx)
			iterExec := exec.WithStore(iterCtx)

			result := r.runDirect(iterExec, step.ID, step, iterCtx.All(), credentials, cacheMode)
			return iterOutcome{index: idx, item: item, result: result}
		})
	}
	outcomes := p.Wait()

	ordered := make([]iterOutcome, len(outcomes))
	for _, o := range outcomes {
		ordered[o.index] = o
	}

	rawAll := make([]any, len(ordered))
	transformedAll := make([]any, len(ordered))
	for i, o := range ordered {
		if !o.result.Success {
			return StepResult{
				StepID:              step.ID,
				Success:             false,
				Error:               o.result.Error,
				IterationsRequested: requested,
				IterationsRun:       len(items),
			}
		}
		rawAll[i] = o.result.RawData
		transformedAll[i] = mergeLoopBinding(o.result.TransformedData, o.item, o.index)
	}

	return StepResult{
		StepID:              step.ID,
		Success:             true,
		RawData:             rawAll,
		TransformedData:     transformedAll,
		IterationsRequested: requested,
		IterationsRun:       len(items),
	}
}

type iterOutcome struct {
	index  int
	item   any
	result StepResult
}

// mergeLoopBinding folds one LOOP iteration's loopValue/loopIndex back
// onto its transformed output. The Step Runner's per-iteration ctx'
// (spec.md §4.4) only ever exists inside that iteration's goroutine, so
// without this a later finalTransform's `seq.({...})` block construct
// (spec.md §9's dog-breeds scenario) would have no way to recover which
// loop item produced a given element of the step's result sequence.
func mergeLoopBinding(transformed any, loopValue any, loopIndex int) any {
	m, ok := transformed.(map[string]any)
	if !ok {
		return map[string]any{"value": transformed, "loopValue": loopValue, "loopIndex": loopIndex}
	}
	merged := make(map[string]any, len(m)+2)
	for k, v := range m {
		merged[k] = v
	}
	merged["loopValue"] = loopValue
	merged["loopIndex"] = loopIndex
	return merged
}

// toSequence coerces a loop selector's evaluated value into a slice, per
// spec.md invariant 2: nil/absent becomes empty, a scalar becomes a
// single-element sequence, and a sequence passes through unchanged.
func toSequence(v any) []any {
	switch t := v.(type) {
	case nil:
		return []any{}
	case []any:
		return t
	default:
		return []any{t}
	}
}

func failedResult(stepID string, err error) StepResult {
	return StepResult{StepID: stepID, Success: false, Error: fmt.Sprintf("%v", err)}
}
