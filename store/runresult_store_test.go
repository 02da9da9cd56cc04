package store

import (
	"context"
	"testing"
	"time"

	"apiflow/engine"
)

func TestMemoryRunResultsListByConfig(t *testing.T) {
	runs := NewMemoryRunResults()
	ctx := context.Background()

	runs.Upsert(ctx, "run1", engine.RunResult{ID: "run1", ConfigID: "wf-a", Success: true, StartedAt: time.Now(), CompletedAt: time.Now()}, "tenant-a")
	runs.Upsert(ctx, "run2", engine.RunResult{ID: "run2", ConfigID: "wf-b", Success: true, StartedAt: time.Now(), CompletedAt: time.Now()}, "tenant-a")
	runs.Upsert(ctx, "run3", engine.RunResult{ID: "run3", ConfigID: "wf-a", Success: false, StartedAt: time.Now(), CompletedAt: time.Now()}, "tenant-a")

	page, err := runs.ListByConfig(ctx, "wf-a", 0, 0, "tenant-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("got total=%d, want 2", page.Total)
	}
	for _, r := range page.Items {
		if r.ConfigID != "wf-a" {
			t.Errorf("got configId=%q, want wf-a", r.ConfigID)
		}
	}
}

func TestMemoryRunResultsDeleteAll(t *testing.T) {
	runs := NewMemoryRunResults()
	ctx := context.Background()

	runs.Upsert(ctx, "run1", engine.RunResult{ID: "run1", StartedAt: time.Now(), CompletedAt: time.Now()}, "tenant-a")
	runs.Upsert(ctx, "run2", engine.RunResult{ID: "run2", StartedAt: time.Now(), CompletedAt: time.Now()}, "tenant-a")
	runs.Upsert(ctx, "run3", engine.RunResult{ID: "run3", StartedAt: time.Now(), CompletedAt: time.Now()}, "tenant-b")

	count, err := runs.DeleteAll(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Errorf("got deleted=%d, want 2", count)
	}

	page, err := runs.List(ctx, 0, 0, "tenant-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 1 {
		t.Errorf("expected tenant-b's run to survive, got total=%d", page.Total)
	}
}
