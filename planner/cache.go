package planner

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/cubegraph/semantic/model"
	"github.com/cubegraph/semantic/query"
)

// PlanCache caches QueryPlans keyed by (dialect, schema, securityContext,
// query) so repeated dashboard refreshes of the same shape skip planning
// entirely, grounded on the teacher's query-plan cache but rekeyed from
// sha256-over-AST to xxhash-over-the-wire-JSON since a SemanticQuery
// already has a canonical JSON encoding (spec §4.5's planner is pure
// over (registry, query, dialect, schema, securityContext)).
type PlanCache struct {
	mu      sync.RWMutex
	entries map[uint64]*cachedPlan

	hits, misses int64
	maxSize      int
	ttl          time.Duration
}

type cachedPlan struct {
	plan    *QueryPlan
	stamped time.Time
}

// NewPlanCache creates a cache holding at most maxSize plans, each valid
// for ttl. Non-positive values fall back to sane defaults.
func NewPlanCache(maxSize int, ttl time.Duration) *PlanCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PlanCache{entries: make(map[uint64]*cachedPlan), maxSize: maxSize, ttl: ttl}
}

// Get returns the cached plan for this (dialect, schema, secCtx, query)
// combination, if present and unexpired.
func (c *PlanCache) Get(dialectName, schema string, secCtx model.SecurityContext, q *query.SemanticQuery) (*QueryPlan, bool) {
	if c == nil {
		return nil, false
	}
	key := computeKey(dialectName, schema, secCtx, q)

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	if time.Since(entry.stamped) > c.ttl {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	atomic.AddInt64(&c.hits, 1)
	return entry.plan, true
}

// Set stores plan under this combination's key.
func (c *PlanCache) Set(dialectName, schema string, secCtx model.SecurityContext, q *query.SemanticQuery, plan *QueryPlan) {
	if c == nil || plan == nil {
		return
	}
	key := computeKey(dialectName, schema, secCtx, q)

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictExpiredLocked()
		if len(c.entries) >= c.maxSize {
			c.evictOldestLocked()
		}
	}
	c.entries[key] = &cachedPlan{plan: plan, stamped: time.Now()}
}

// Clear empties the cache and resets its hit/miss counters.
func (c *PlanCache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*cachedPlan)
	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
}

// Stats reports cumulative hit/miss counts and current size.
func (c *PlanCache) Stats() (hits, misses int64, size int) {
	if c == nil {
		return 0, 0, 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses), len(c.entries)
}

func (c *PlanCache) evictExpiredLocked() {
	now := time.Now()
	for k, v := range c.entries {
		if now.Sub(v.stamped) > c.ttl {
			delete(c.entries, k)
		}
	}
}

func (c *PlanCache) evictOldestLocked() {
	var oldestKey uint64
	var oldestTime time.Time
	first := true
	for k, v := range c.entries {
		if first || v.stamped.Before(oldestTime) {
			oldestKey, oldestTime, first = k, v.stamped, false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

// computeKey hashes the query's canonical JSON encoding together with
// the dialect, schema, and security context, so two structurally
// identical requests from different tenants don't collide even though
// SecurityContext values are always bound as parameters, never spliced
// into SQL text, because a BaseQueryFn can still branch on a
// SecurityContext key's presence/shape and change the templated SQL.
func computeKey(dialectName, schema string, secCtx model.SecurityContext, q *query.SemanticQuery) uint64 {
	h := xxhash.New()
	h.WriteString(dialectName)
	h.WriteString("\x00")
	h.WriteString(schema)
	h.WriteString("\x00")
	if b, err := json.Marshal(secCtx); err == nil {
		h.Write(b)
	}
	h.WriteString("\x00")
	if b, err := json.Marshal(q); err == nil {
		h.Write(b)
	}
	return h.Sum64()
}
