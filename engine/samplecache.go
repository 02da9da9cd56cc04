package engine

import "sync"

// sampleCacheKey scopes the run-sample cache by tenant as well as
// workflow id. spec.md §9 Open Question (b) notes the original
// implementation keyed this cache by workflow id alone, which leaks
// samples across tenants; this implementation follows the spec's
// recommendation and keys by (tenant, workflowId).
type sampleCacheKey struct {
	tenantID   string
	workflowID string
}

// SampleCache holds the most recent run sample per (tenant, workflow),
// used by the schema-generation helper to suggest a responseSchema from
// observed output. It has at-most-once-per-workflow semantics: a new
// Put replaces whatever was cached for that key.
type SampleCache struct {
	mu      sync.Mutex
	samples map[sampleCacheKey]any
}

func NewSampleCache() *SampleCache {
	return &SampleCache{samples: make(map[sampleCacheKey]any)}
}

func (c *SampleCache) Put(tenantID, workflowID string, sample any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples[sampleCacheKey{tenantID, workflowID}] = sample
}

func (c *SampleCache) Get(tenantID, workflowID string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.samples[sampleCacheKey{tenantID, workflowID}]
	return v, ok
}
