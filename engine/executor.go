package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Executor orchestrates a Workflow's ordered Steps, carries the
// accumulated context between them, applies the final transform, and
// emits a RunResult (C5, spec.md §4.5). It mirrors the teacher's
// runtime/executor.go step loop, generalized from condition/retry
// handling to the spec's strict-sequential DIRECT/LOOP/final-transform
// state machine:
//
//	READY → RUNNING_STEP(i) → [next step] → FINAL_TRANSFORM → DONE
//	                      ↘ STEP_FAILED ↘ FAILED
type Executor struct {
	evaluator  *ExpressionEvaluator
	stepRunner *StepRunner
}

func NewExecutor(evaluator *ExpressionEvaluator, stepRunner *StepRunner) *Executor {
	return &Executor{evaluator: evaluator, stepRunner: stepRunner}
}

// RunOptions configures one Execute call.
type RunOptions struct {
	TenantID    string
	Credentials map[string]any
	CacheMode   CacheMode
	Timeout     time.Duration
}

// Execute drives wf's steps to completion against payload and returns an
// immutable RunResult. The returned RunResult is always populated, even
// when the run fails, per spec.md §4.5.
func (e *Executor) Execute(ctx context.Context, wf Workflow, payload any, opts RunOptions) RunResult {
	if len(wf.Steps) == 0 {
		return RunResult{
			ID:        uuid.New().String(),
			Success:   false,
			Error:     NewError(KindValidation, "", "workflow has no steps").Error(),
			StartedAt: time.Now(),
			CompletedAt: time.Now(),
			Config:    wf,
			TenantID:  opts.TenantID,
		}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	exec := NewExecution(runCtx, opts.TenantID, payload)
	startedAt := time.Now()

	stepResults := make([]StepResult, 0, len(wf.Steps))

	for _, step := range wf.Steps {
		select {
		case <-runCtx.Done():
			return timeoutResult(exec.ID, wf, stepResults, startedAt, opts.TenantID)
		default:
		}

		result := e.stepRunner.RunStep(exec, step, opts.Credentials, opts.CacheMode)
		stepResults = append(stepResults, result)

		if !result.Success {
			if runCtx.Err() != nil {
				return timeoutResult(exec.ID, wf, stepResults, startedAt, opts.TenantID)
			}
			return RunResult{
				ID:          exec.ID,
				Success:     false,
				Data:        nil,
				Error:       result.Error,
				StartedAt:   startedAt,
				CompletedAt: time.Now(),
				StepResults: stepResults,
				Config:      wf,
				TenantID:    opts.TenantID,
			}
		}

		exec.AddValue(step.ID, result.TransformedData)

		if runCtx.Err() != nil {
			return timeoutResult(exec.ID, wf, stepResults, startedAt, opts.TenantID)
		}
	}

	finalTransform := wf.FinalTransform
	if finalTransform == "" {
		finalTransform = "$"
	}

	evalResult := e.evaluator.EvaluateWithSchema(finalTransform, exec.Values(), wf.ResponseSchema)

	return RunResult{
		ID:          exec.ID,
		Success:     evalResult.Success,
		Data:        evalResult.Data,
		Error:       evalResult.Error,
		StartedAt:   startedAt,
		CompletedAt: time.Now(),
		StepResults: stepResults,
		Config:      wf,
		TenantID:    opts.TenantID,
	}
}

func timeoutResult(id string, wf Workflow, stepResults []StepResult, startedAt time.Time, tenantID string) RunResult {
	return RunResult{
		ID:          id,
		Success:     false,
		Data:        nil,
		Error:       NewError(KindTimeout, "", "timeout").Error(),
		StartedAt:   startedAt,
		CompletedAt: time.Now(),
		StepResults: stepResults,
		Config:      wf,
		TenantID:    tenantID,
	}
}
