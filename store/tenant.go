package store

import "context"

// Tenants wraps an EntityStore[T] keyed by tenant id itself, for the single
// administrative record (engine.TenantInfo) each tenant owns, per spec.md
// §4.3's tenant administration note. The row's id and tenant scope are the
// same value, so TenantMatch still governs visibility identically to every
// other entity kind.
type Tenants[T any] struct {
	backend EntityStore[T]
}

func NewTenants[T any](backend EntityStore[T]) *Tenants[T] {
	return &Tenants[T]{backend: backend}
}

func (t *Tenants[T]) Get(ctx context.Context, tenantID string) (*T, error) {
	return t.backend.Get(ctx, tenantID, tenantID)
}

func (t *Tenants[T]) Upsert(ctx context.Context, tenantID string, info T) (*T, error) {
	return t.backend.Upsert(ctx, tenantID, info, tenantID)
}
