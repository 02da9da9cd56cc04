// Package store implements the Data Store (C3): a durable mapping from
// (entity kind, id, tenant id) to entity payload, with listing and
// deletion, scoped by tenant per spec.md §4.3. One EntityStore[T]
// contract is shared by every entity kind (ApiConfig, Workflow,
// RunResult) instead of one interface per kind, per spec.md §9's
// "polymorphism over entity kinds" design note.
package store

import (
	"context"
	"net/url"
	"time"
)

// Page is the result of a List call: a slice of items plus the exact
// total count across all tenants visible to the caller.
type Page[T any] struct {
	Items []T
	Total int
}

// EntityStore is the contract every backend (memory/file/postgres)
// satisfies identically for a single entity kind, per spec.md §4.3.
type EntityStore[T any] interface {
	Get(ctx context.Context, id, tenant string) (*T, error)
	Upsert(ctx context.Context, id string, entity T, tenant string) (*T, error)
	Delete(ctx context.Context, id, tenant string) (bool, error)
	List(ctx context.Context, limit, offset int, tenant string) (Page[T], error)
}

// Timestamps is embedded by row wrappers to track server-assigned
// createdAt/updatedAt, preserved across updates per spec.md §3 lifecycle
// rules (createdAt survives an update; updatedAt is refreshed).
type Timestamps struct {
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Timestamped is implemented by entity types that expose their own
// createdAt/updatedAt fields (engine.Workflow, engine.ApiConfig,
// engine.TenantInfo). Backends type-assert a returned/persisted entity
// against this interface via stampEntity so the server-assigned
// timestamps spec.md §4.3 requires land on the entity itself, not just
// the backend's internal row wrapper.
type Timestamped interface {
	SetTimestamps(createdAt, updatedAt time.Time)
}

// stampEntity copies ts onto entity when entity implements Timestamped,
// and is a no-op otherwise (e.g. store.Memory[string] in tests). T must
// be addressable for the type assertion to observe a pointer receiver,
// so callers pass entity by value and stampEntity takes its address
// internally.
func stampEntity[T any](entity T, ts Timestamps) T {
	if t, ok := any(&entity).(Timestamped); ok {
		t.SetTimestamps(ts.CreatedAt, ts.UpdatedAt)
	}
	return entity
}

// TenantMatch implements the "tenant IS NULL OR row.tenant = tenant"
// predicate from spec.md §9 — a null (empty) tenant on the query side
// matches every row ("admin mode"); this single function is reused by
// every in-process backend so none of them can special-case an
// unscoped read as a shortcut.
func TenantMatch(queryTenant, rowTenant string) bool {
	return queryTenant == "" || queryTenant == rowTenant
}

// DecodeID URL-decodes an id before lookup, per spec.md §3 ("ids are
// opaque URL-decoded on read").
func DecodeID(id string) string {
	decoded, err := url.QueryUnescape(id)
	if err != nil {
		return id
	}
	return decoded
}
