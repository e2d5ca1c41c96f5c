package preview

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dfrcore/dfr/op"
	"github.com/dfrcore/dfr/plan"
	"github.com/dfrcore/dfr/source"
)

func writeCacheSourceCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache-src.csv")
	content := "id,amount\n1,10\n2,20\n3,30\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write source csv: %v", err)
	}
	return path
}

func buildCachePlan(t *testing.T, ops []op.Operation) *plan.LazyPlan {
	t.Helper()
	desc := source.Descriptor{Format: source.FormatCSV, Path: writeCacheSourceCSV(t)}
	p, err := plan.Build(context.Background(), desc, ops, 5*time.Second)
	if err != nil {
		t.Fatalf("plan.Build: %v", err)
	}
	return p
}

func TestCacheRequestMemoizesByHash(t *testing.T) {
	c, err := NewCache(10, 4, 0)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	p := buildCachePlan(t, nil)

	res1, h1, err := c.Request(context.Background(), p)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	res2, h2, err := c.Request(context.Background(), p)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if h1 != h2 {
		t.Error("expected identical plans to hash the same")
	}
	if res1.PreviewRows != res2.PreviewRows {
		t.Errorf("cached result diverged: %d vs %d", res1.PreviewRows, res2.PreviewRows)
	}
}

func TestCacheRequestDistinguishesDifferentPlans(t *testing.T) {
	c, err := NewCache(10, 4, 0)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	base := buildCachePlan(t, nil)
	filtered := buildCachePlan(t, []op.Operation{op.Filter{Column: "amount", Predicate: op.PredEq, Value: "10"}})

	_, h1, err := c.Request(context.Background(), base)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	_, h2, err := c.Request(context.Background(), filtered)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if h1 == h2 {
		t.Error("expected different pipelines to hash differently")
	}
}

func TestCacheRequestConcurrentCallsForSameHashAllSucceed(t *testing.T) {
	c, err := NewCache(10, 4, 0)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	p := buildCachePlan(t, nil)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := c.Request(context.Background(), p)
			errs[i] = err
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Errorf("Request[%d]: %v", i, err)
		}
	}
}

func TestCacheInvalidatePurgesEntries(t *testing.T) {
	c, err := NewCache(10, 4, 0)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	p := buildCachePlan(t, nil)
	if _, _, err := c.Request(context.Background(), p); err != nil {
		t.Fatalf("Request: %v", err)
	}

	c.Invalidate()
	if c.lru.Len() != 0 {
		t.Errorf("lru.Len() = %d after Invalidate, want 0", c.lru.Len())
	}
	if c.rowsCached != 0 {
		t.Errorf("rowsCached = %d after Invalidate, want 0", c.rowsCached)
	}
}

func TestCacheEvictsOldestWhenRowFootprintExceeded(t *testing.T) {
	c, err := NewCache(10, 8, 3)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	p1 := buildCachePlan(t, nil)
	p2 := buildCachePlan(t, []op.Operation{op.Limit{N: 1}})

	if _, _, err := c.Request(context.Background(), p1); err != nil {
		t.Fatalf("Request p1: %v", err)
	}
	if _, _, err := c.Request(context.Background(), p2); err != nil {
		t.Fatalf("Request p2: %v", err)
	}

	if c.rowsCached > 3 {
		t.Errorf("rowsCached = %d, want <= 3 after eviction", c.rowsCached)
	}
}

func TestNewCacheDefaultsMaxEntries(t *testing.T) {
	c, err := NewCache(10, 0, 0)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	if c.maxEntries != 16 {
		t.Errorf("maxEntries = %d, want default 16", c.maxEntries)
	}
}
