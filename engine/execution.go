package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
)

var _ context.Context = (*Execution)(nil)

// Execution carries the accumulated context for one workflow run. It
// implements context.Context so that Step Runner, HTTP Caller, and
// expression evaluation calls can all take a single argument that
// threads both data and cancellation/deadline — the same pattern the
// teacher's runtime.Execution uses (runtime/execution.go).
type Execution struct {
	ID       string
	TenantID string
	Store    *ValueStore
	ctx      context.Context
}

func NewExecution(ctx context.Context, tenantID string, payload any) *Execution {
	if ctx == nil {
		ctx = context.Background()
	}
	store := NewValueStore()
	if payload != nil {
		store.Set("payload", payload)
	}
	return &Execution{
		ID:       uuid.New().String(),
		TenantID: tenantID,
		Store:    store,
		ctx:      ctx,
	}
}

func (e *Execution) Deadline() (time.Time, bool) { return e.ctx.Deadline() }
func (e *Execution) Done() <-chan struct{}       { return e.ctx.Done() }
func (e *Execution) Err() error                  { return e.ctx.Err() }

func (e *Execution) Value(key any) any {
	if k, ok := key.(string); ok {
		if v, ok := e.Store.Get(k); ok {
			return v
		}
	}
	return e.ctx.Value(key)
}

// WithContext returns a shallow copy of the Execution with a new embedded
// context, used to apply a per-step timeout without mutating the parent —
// mirrors http.Request.WithContext, same as the teacher does.
func (e *Execution) WithContext(ctx context.Context) *Execution {
	cp := *e
	cp.ctx = ctx
	return &cp
}

// WithStore returns a shallow copy of the Execution backed by a different
// ValueStore, used to give each LOOP iteration its own ctx' without
// mutating the parent step's shared context.
func (e *Execution) WithStore(store *ValueStore) *Execution {
	cp := *e
	cp.Store = store
	return &cp
}

func (e *Execution) AddValue(k string, v any) {
	e.Store.Set(k, v)
}

// Values returns the full context map for expression evaluation.
func (e *Execution) Values() map[string]any {
	return e.Store.All()
}
