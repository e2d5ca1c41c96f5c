package preview

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/dfrcore/dfr/plan"
)

// Cache memoizes Result values by plan.Hash, bounded both by entry count
// and by total cached row footprint. Concurrent Request calls for the
// same in-flight hash share one execution via singleflight rather than
// each recomputing it.
type Cache struct {
	rowLimit      int64
	maxEntries    int
	maxRowFootprt int64

	mu         sync.Mutex
	lru        *lru.Cache[plan.Hash, Result]
	rowsCached int64

	group singleflight.Group
}

// NewCache builds a Cache holding at most maxEntries results and at most
// maxRowFootprint rows across all of them; rowLimit bounds how many rows
// each individual Execute call materializes.
func NewCache(rowLimit int64, maxEntries int, maxRowFootprint int64) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = 16
	}
	l, err := lru.New[plan.Hash, Result](maxEntries)
	if err != nil {
		return nil, err
	}
	return &Cache{
		rowLimit:      rowLimit,
		maxEntries:    maxEntries,
		maxRowFootprt: maxRowFootprint,
		lru:           l,
	}, nil
}

// Request returns the cached Result for p's hash if present, otherwise
// computes it. Concurrent Request calls for the same hash attach to the
// one in-flight computation and all receive its result.
func (c *Cache) Request(ctx context.Context, p *plan.LazyPlan) (Result, plan.Hash, error) {
	h, err := plan.Compute(p.Descriptor, p.Ops)
	if err != nil {
		return Result{}, plan.Hash{}, err
	}

	c.mu.Lock()
	if res, ok := c.lru.Get(h); ok {
		c.mu.Unlock()
		return res, h, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(h.String(), func() (any, error) {
		res, err := Execute(ctx, p, c.rowLimit)
		if err != nil {
			return Result{}, err
		}
		c.store(h, res)
		return res, nil
	})
	if err != nil {
		return Result{}, h, err
	}
	return v.(Result), h, nil
}

// store inserts res under h, evicting the oldest entries if needed to
// respect the total row-footprint ceiling.
func (c *Cache) store(h plan.Hash, res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(h, res)
	c.rowsCached += res.PreviewRows

	for c.maxRowFootprt > 0 && c.rowsCached > c.maxRowFootprt && c.lru.Len() > 1 {
		_, evicted, ok := c.lru.RemoveOldest()
		if !ok {
			break
		}
		c.rowsCached -= evicted.PreviewRows
	}
}

// Invalidate drops every cached entry. Clearing a pipeline does not
// require this — stale entries simply age out by hash — but callers that
// want a hard reset (e.g. opening a new file under the same session) may
// call it explicitly.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.rowsCached = 0
}
