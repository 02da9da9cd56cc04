package store

import (
	"context"
	"testing"

	"apiflow/engine"
)

func TestTenantsGetUpsertScopedByTenantIDItself(t *testing.T) {
	tenants := NewTenants(NewMemory[engine.TenantInfo]())
	ctx := context.Background()

	if _, err := tenants.Upsert(ctx, "tenant-a", engine.TenantInfo{Email: "a@example.com"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := tenants.Get(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Email != "a@example.com" {
		t.Errorf("got %v, want email=a@example.com", got)
	}

	missing, err := tenants.Get(ctx, "tenant-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Error("expected no record for an unknown tenant id")
	}
}
