package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/newthinker/stonks/internal/core"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func series(symbol string) *core.Series {
	return &core.Series{Symbol: symbol}
}

func TestTTL_ImplementsCache(t *testing.T) {
	var _ Cache = (*TTL)(nil)
	var _ Cache = Nop{}
}

func TestTTL_GetSet(t *testing.T) {
	c := NewTTL(10, time.Minute)

	if _, ok := c.Get("AAPL|1y"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set("AAPL|1y", series("AAPL"))
	got, ok := c.Get("AAPL|1y")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Symbol != "AAPL" {
		t.Errorf("got %s, want AAPL", got.Symbol)
	}
}

func TestTTL_Expiry(t *testing.T) {
	clock := newClock()
	c := NewTTL(10, 5*time.Minute).WithClock(clock.Now)

	c.Set("k", series("AAPL"))

	clock.Advance(4*time.Minute + 59*time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry should still be live")
	}

	clock.Advance(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should have expired")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be dropped on access, len=%d", c.Len())
	}
}

func TestTTL_EntriesExpireIndependently(t *testing.T) {
	clock := newClock()
	c := NewTTL(10, time.Minute).WithClock(clock.Now)

	c.Set("a", series("A"))
	clock.Advance(30 * time.Second)
	c.Set("b", series("B"))
	clock.Advance(40 * time.Second)

	if _, ok := c.Get("a"); ok {
		t.Error("a should have expired")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("b should still be live")
	}
}

func TestTTL_EvictsOldest(t *testing.T) {
	c := NewTTL(2, time.Hour)

	c.Set("a", series("A"))
	c.Set("b", series("B"))
	c.Set("c", series("C")) // Should evict a

	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", c.Len())
	}
}

func TestTTL_ReplaceRefreshesOrder(t *testing.T) {
	c := NewTTL(2, time.Hour)

	c.Set("a", series("A"))
	c.Set("b", series("B"))
	c.Set("a", series("A2")) // a is now newest
	c.Set("c", series("C"))  // Should evict b

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	got, ok := c.Get("a")
	if !ok || got.Symbol != "A2" {
		t.Errorf("expected replaced entry, got %v %v", got, ok)
	}
}

func TestTTL_Purge(t *testing.T) {
	clock := newClock()
	c := NewTTL(10, time.Minute).WithClock(clock.Now)

	c.Set("a", series("A"))
	c.Set("b", series("B"))
	clock.Advance(2 * time.Minute)
	c.Set("c", series("C"))

	if removed := c.Purge(); removed != 2 {
		t.Errorf("expected 2 purged, got %d", removed)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry left, got %d", c.Len())
	}
}

func TestTTL_Concurrent(t *testing.T) {
	c := NewTTL(50, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			c.Set(key, series(key))
			c.Get(key)
			c.Purge()
		}(i)
	}
	wg.Wait()

	if c.Len() > 5 {
		t.Errorf("expected at most 5 entries, got %d", c.Len())
	}
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	c.Set("k", series("A"))
	if _, ok := c.Get("k"); ok {
		t.Error("nop cache should never hit")
	}
	if c.Len() != 0 || c.Purge() != 0 {
		t.Error("nop cache should stay empty")
	}
}
