package httpcaller

import (
	"context"
	"fmt"

	"github.com/Jeffail/gabs/v2"

	"apiflow/engine"
)

const defaultPageSize = 20

// doPaginated drives cfg's endpoint across pages according to
// cfg.Pagination.Type, concatenating decoded arrays into one sequence,
// per spec.md §4.2. len(page) < pageSize is the stop signal for
// OFFSET_BASED/PAGE_BASED, per spec.md §9 Open Question (c).
func (c *Caller) doPaginated(ctx context.Context, cfg engine.ApiConfig, url, method string, headers map[string]string, query map[string]string, body, fp string, cacheMode engine.CacheMode) (engine.CallResult, error) {
	pag := cfg.Pagination
	pageSize := pag.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	var all []any
	pages := 0
	lastStatus := 0

	switch pag.Type {
	case engine.PaginationOffset:
		offset := 0
		for {
			q := cloneMap(query)
			q["offset"] = fmt.Sprintf("%d", offset)
			q["pageSize"] = fmt.Sprintf("%d", pageSize)

			page, status, err := c.doRequest(ctx, cfg, url, method, headers, q, body)
			if err != nil {
				return engine.CallResult{}, err
			}
			pages++
			lastStatus = status

			items := toSlice(page)
			all = append(all, items...)
			if len(items) < pageSize {
				break
			}
			offset += pageSize
		}

	case engine.PaginationPage:
		pageNum := 1
		for {
			q := cloneMap(query)
			q["page"] = fmt.Sprintf("%d", pageNum)
			q["pageSize"] = fmt.Sprintf("%d", pageSize)

			page, status, err := c.doRequest(ctx, cfg, url, method, headers, q, body)
			if err != nil {
				return engine.CallResult{}, err
			}
			pages++
			lastStatus = status

			items := toSlice(page)
			all = append(all, items...)
			if len(items) < pageSize {
				break
			}
			pageNum++
		}

	case engine.PaginationCursor:
		cursor := ""
		for {
			q := cloneMap(query)
			if cursor != "" {
				q["cursor"] = cursor
			}

			page, status, err := c.doRequest(ctx, cfg, url, method, headers, q, body)
			if err != nil {
				return engine.CallResult{}, err
			}
			pages++
			lastStatus = status

			items := toSlice(page)
			all = append(all, items...)

			next, err := readCursor(page, pag.CursorPath)
			if err != nil || next == "" {
				break
			}
			cursor = next
		}

	default:
		return c.doSingleCached(ctx, cfg, url, method, headers, query, body, fp, cacheMode)
	}

	return engine.CallResult{Data: all, PagesFetched: pages, LastStatus: lastStatus}, nil
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// readCursor reads cursorPath from a decoded page response using gabs.
// Absence of the path (or a nil/empty value) signals the end of pagination.
func readCursor(page any, cursorPath string) (string, error) {
	if cursorPath == "" {
		return "", nil
	}
	container := gabs.Wrap(page)
	node := container.Path(cursorPath)
	if node == nil || node.Data() == nil {
		return "", nil
	}
	return fmt.Sprintf("%v", node.Data()), nil
}
