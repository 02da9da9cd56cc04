package store

import (
	"context"
	"sort"

	"apiflow/engine"
)

// FileRunResults layers configId filtering and bulk deletion on top of a
// File[engine.RunResult] backend, the file-backed analogue of
// MemoryRunResults.
type FileRunResults struct {
	*File[engine.RunResult]
}

func NewFileRunResults(backend *File[engine.RunResult]) *FileRunResults {
	return &FileRunResults{File: backend}
}

func (f *FileRunResults) ListByConfig(ctx context.Context, configID string, limit, offset int, tenant string) (Page[engine.RunResult], error) {
	all, err := f.File.List(ctx, 0, 0, tenant)
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

func (f *FileRunResults) DeleteAll(ctx context.Context, tenant string) (int, error) {
	all, err := f.File.List(ctx, 0, 0, tenant)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, r := range all.Items {
		ok, err := f.File.Delete(ctx, r.ID, tenant)
		if err != nil {
			return count, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}
