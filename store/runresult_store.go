package store

import (
	"context"
	"sort"
	"sync"

	"apiflow/engine"
)

// RunResults is the RunResult-specific store surface: everything
// EntityStore offers plus configId-scoped listing and bulk deletion, per
// spec.md §4.3's "(and configId, success for runs)" indexed-column note.
type RunResults interface {
	EntityStore[engine.RunResult]
	ListByConfig(ctx context.Context, configID string, limit, offset int, tenant string) (Page[engine.RunResult], error)
	DeleteAll(ctx context.Context, tenant string) (int, error)
}

// MemoryRunResults is the in-process RunResults backend, layering
// configId filtering and bulk deletion on top of Memory[engine.RunResult].
type MemoryRunResults struct {
	*Memory[engine.RunResult]
	mu sync.RWMutex
}

func NewMemoryRunResults() *MemoryRunResults {
	return &MemoryRunResults{Memory: NewMemory[engine.RunResult]()}
}

func (m *MemoryRunResults) ListByConfig(_ context.Context, configID string, limit, offset int, tenant string) (Page[engine.RunResult], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all, err := m.Memory.List(context.Background(), 0, 0, tenant)
	if err != nil {
		return Page[engine.RunResult]{}, err
	}

	matched := make([]engine.RunResult, 0, len(all.Items))
	for _, r := range all.Items {
		if r.ConfigID == configID {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}

	return Page[engine.RunResult]{Items: matched[offset:end], Total: total}, nil
}

func (m *MemoryRunResults) DeleteAll(ctx context.Context, tenant string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.Memory.List(ctx, 0, 0, tenant)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, r := range all.Items {
		ok, err := m.Memory.Delete(ctx, r.ID, tenant)
		if err != nil {
			return count, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}
