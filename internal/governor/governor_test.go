package governor

import (
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"
)

func testGovernor(t *testing.T) (*Governor, *time.Time) {
	t.Helper()
	g := New(log.New(io.Discard, "", 0))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	return g, &now
}

func TestBudgetExhaustion(t *testing.T) {
	g, _ := testGovernor(t)
	g.Configure("llm", Limits{Capacity: 2, Window: time.Minute, MaxConcurrent: 10, LeaseTTL: time.Minute})

	if _, err := g.Acquire("llm", "a"); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := g.Acquire("llm", "b"); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if _, err := g.Acquire("llm", "c"); !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("third acquire err = %v, want ErrBudgetExhausted", err)
	}
}

func TestBudgetRefillsOverWindow(t *testing.T) {
	g, now := testGovernor(t)
	g.Configure("llm", Limits{Capacity: 2, Window: time.Minute, MaxConcurrent: 10, LeaseTTL: 10 * time.Minute})

	l1, _ := g.Acquire("llm", "a")
	l2, _ := g.Acquire("llm", "b")
	_ = g.Release(l1)
	_ = g.Release(l2)

	if _, err := g.Acquire("llm", "c"); !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("release must not refund tokens, got %v", err)
	}

	// Half a window restores one token at capacity 2.
	*now = now.Add(30 * time.Second)
	if _, err := g.Acquire("llm", "c"); err != nil {
		t.Fatalf("acquire after refill: %v", err)
	}
	if _, err := g.Acquire("llm", "d"); !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("only one token should have refilled, got %v", err)
	}
}

func TestConcurrencyCeiling(t *testing.T) {
	g, _ := testGovernor(t)
	g.Configure("submit:linkedin", Limits{Capacity: 100, Window: time.Minute, MaxConcurrent: 1, LeaseTTL: time.Minute})

	l, err := g.Acquire("submit:linkedin", "app-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := g.Acquire("submit:linkedin", "app-2"); !errors.Is(err, ErrOverConcurrency) {
		t.Fatalf("err = %v, want ErrOverConcurrency", err)
	}

	if err := g.Release(l); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := g.Acquire("submit:linkedin", "app-2"); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestExpiredLeaseIsReclaimed(t *testing.T) {
	g, now := testGovernor(t)
	g.Configure("submit:indeed", Limits{Capacity: 100, Window: time.Minute, MaxConcurrent: 1, LeaseTTL: time.Minute})

	crashed, err := g.Acquire("submit:indeed", "crashed-holder")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	*now = now.Add(61 * time.Second)
	if _, err := g.Acquire("submit:indeed", "next-holder"); err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}
	if got := g.Outstanding("submit:indeed"); got != 1 {
		t.Fatalf("outstanding = %d, want 1", got)
	}

	// The stale holder releasing late is a no-op, not a double free.
	if err := g.Release(crashed); !errors.Is(err, ErrLeaseNotHeld) {
		t.Fatalf("late release err = %v, want ErrLeaseNotHeld", err)
	}
}

func TestUnknownResource(t *testing.T) {
	g, _ := testGovernor(t)
	if _, err := g.Acquire("nope", "x"); !errors.Is(err, ErrUnknownResource) {
		t.Fatalf("err = %v, want ErrUnknownResource", err)
	}
}

func TestRefillInterval(t *testing.T) {
	g, _ := testGovernor(t)
	g.Configure("llm", Limits{Capacity: 60, Window: time.Minute, MaxConcurrent: 4, LeaseTTL: time.Minute})
	if got := g.RefillInterval("llm"); got != time.Second {
		t.Fatalf("refill interval = %s, want 1s", got)
	}
}

func TestConcurrentAcquireNeverOvergrants(t *testing.T) {
	g, _ := testGovernor(t)
	const capacity, maxConc = 40, 7
	g.Configure("llm", Limits{Capacity: capacity, Window: time.Hour, MaxConcurrent: maxConc, LeaseTTL: time.Minute})

	var (
		mu      sync.Mutex
		granted int
		wg      sync.WaitGroup
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := g.Acquire("llm", "storm")
			if err != nil {
				return
			}
			if out := g.Outstanding("llm"); out > maxConc {
				t.Errorf("outstanding = %d while holding, ceiling is %d", out, maxConc)
			}
			mu.Lock()
			granted++
			mu.Unlock()
			_ = g.Release(l)
		}()
	}
	wg.Wait()

	if granted > capacity {
		t.Fatalf("granted %d leases from a budget of %d", granted, capacity)
	}
	if got := g.Outstanding("llm"); got != 0 {
		t.Fatalf("outstanding after storm = %d, want 0", got)
	}
}
