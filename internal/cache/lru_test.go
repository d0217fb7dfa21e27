package cache

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestCache(size int, ttl time.Duration) (*LRUCache[int, string], *time.Time) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[int, string](size, ttl, strconv.Itoa)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Hour)
	c.Set(1, "a")
	c.Set(2, "b")
	c.Get(1)
	c.Set(3, "c")

	if _, ok := c.Get(2); ok {
		t.Error("key 2 should have been evicted")
	}
	if v, ok := c.Get(1); !ok || v != "a" {
		t.Errorf("Get(1) = %q, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c, now := newTestCache(10, time.Minute)
	c.Set(1, "a")
	c.Set(2, "b")

	*now = now.Add(2 * time.Minute)
	if _, ok := c.Get(1); ok {
		t.Error("expired entry returned")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestLRUCache_GetOrLoad(t *testing.T) {
	c, _ := newTestCache(10, time.Hour)
	var calls int32

	load := func() (string, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(10 * time.Millisecond)
		return "loaded", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := c.GetOrLoad(7, load); err != nil || v != "loaded" {
				t.Errorf("GetOrLoad() = %q, %v", v, err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("load called %d times, want 1", got)
	}

	c.Delete(7)
	if _, err := c.GetOrLoad(7, load); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("load called %d times after Delete, want 2", got)
	}
}

func TestLRUCache_GetOrLoadErrorIsNotCached(t *testing.T) {
	c, _ := newTestCache(10, time.Hour)
	boom := errors.New("boom")

	if _, err := c.GetOrLoad(1, func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("GetOrLoad() error = %v, want boom", err)
	}
	if c.Size() != 0 {
		t.Error("failed load must not be cached")
	}
	hits, misses := c.Stats()
	if hits != 0 || misses != 1 {
		t.Errorf("Stats() = %d/%d, want 0/1", hits, misses)
	}
}

func TestManager_Sweep(t *testing.T) {
	c, now := newTestCache(10, time.Minute)
	c.Set(1, "a")
	m := NewManager()
	m.Register(c)

	*now = now.Add(time.Hour)
	if n := m.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
