package engine

import "context"

// CallResult is what an HTTPCaller returns for one (possibly paginated)
// ApiConfig invocation.
type CallResult struct {
	Data         any
	PagesFetched int
	LastStatus   int
}

// HTTPCaller is the C2 contract the Step Runner drives. The concrete
// implementation (package httpcaller) depends on this package for its
// types, so the interface lives here to avoid an import cycle — the Step
// Runner is wired against it via dependency injection, the same way the
// teacher's Container wires plugin Tasks against runtime.Task.
type HTTPCaller interface {
	Call(ctx context.Context, cfg ApiConfig, input any, credentials map[string]any, tenantID string, cacheMode CacheMode) (CallResult, error)
}
