package session

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"autoapply/internal/domain"
)

type fakeHandle struct {
	id     int
	runErr error
	closed bool
}

func (h *fakeHandle) Run(ctx context.Context, script string) error { return h.runErr }
func (h *fakeHandle) Close() error                                 { h.closed = true; return nil }

type fakeProvider struct {
	mu      sync.Mutex
	opened  int
	closed  int
	openErr error
}

func (p *fakeProvider) Open(ctx context.Context, platform domain.Platform) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.openErr != nil {
		return nil, p.openErr
	}
	p.opened++
	return &fakeHandle{id: p.opened}, nil
}

func (p *fakeProvider) Close(h Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

func testPool(t *testing.T, max int) (*Pool, *fakeProvider) {
	t.Helper()
	provider := &fakeProvider{}
	return NewPool(provider, max, log.New(io.Discard, "", 0)), provider
}

func TestCheckinReusesSession(t *testing.T) {
	p, provider := testPool(t, 2)
	ctx := context.Background()

	s1, err := p.Checkout(ctx, domain.PlatformLinkedIn)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	p.Checkin(s1, false)

	s2, err := p.Checkout(ctx, domain.PlatformLinkedIn)
	if err != nil {
		t.Fatalf("second checkout: %v", err)
	}
	if s2.ID != s1.ID {
		t.Fatalf("expected the idle session back, got a new one")
	}
	if provider.opened != 1 {
		t.Fatalf("opened %d sessions, want 1", provider.opened)
	}
}

func TestCeilingBlocksCheckout(t *testing.T) {
	p, _ := testPool(t, 1)
	ctx := context.Background()

	s, err := p.Checkout(ctx, domain.PlatformIndeed)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := p.Checkout(waitCtx, domain.PlatformIndeed); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded while pool is full", err)
	}

	p.Checkin(s, false)
	if _, err := p.Checkout(ctx, domain.PlatformIndeed); err != nil {
		t.Fatalf("checkout after checkin: %v", err)
	}
}

func TestPlatformsHaveIndependentCeilings(t *testing.T) {
	p, _ := testPool(t, 1)
	ctx := context.Background()

	if _, err := p.Checkout(ctx, domain.PlatformLinkedIn); err != nil {
		t.Fatalf("linkedin checkout: %v", err)
	}
	if _, err := p.Checkout(ctx, domain.PlatformIndeed); err != nil {
		t.Fatalf("indeed checkout must not wait on linkedin's slot: %v", err)
	}
}

func TestTwoConsecutiveFailuresRetire(t *testing.T) {
	p, provider := testPool(t, 1)
	ctx := context.Background()

	s, _ := p.Checkout(ctx, domain.PlatformLinkedIn)
	p.Checkin(s, true)

	s, _ = p.Checkout(ctx, domain.PlatformLinkedIn)
	if provider.opened != 1 {
		t.Fatalf("one failure must not retire the session")
	}
	p.Checkin(s, true)
	if provider.closed != 1 {
		t.Fatalf("closed = %d, want 1 after two consecutive failures", provider.closed)
	}

	s, _ = p.Checkout(ctx, domain.PlatformLinkedIn)
	if provider.opened != 2 {
		t.Fatalf("opened = %d, want a fresh session after retirement", provider.opened)
	}
	p.Checkin(s, false)
}

func TestSuccessResetsFailureCount(t *testing.T) {
	p, provider := testPool(t, 1)
	ctx := context.Background()

	s, _ := p.Checkout(ctx, domain.PlatformLinkedIn)
	p.Checkin(s, true)
	s, _ = p.Checkout(ctx, domain.PlatformLinkedIn)
	p.Checkin(s, false)
	s, _ = p.Checkout(ctx, domain.PlatformLinkedIn)
	p.Checkin(s, true)

	if provider.closed != 0 {
		t.Fatalf("non-consecutive failures must not retire the session")
	}
}

func TestOpenErrorReturnsSlot(t *testing.T) {
	p, provider := testPool(t, 1)
	ctx := context.Background()

	provider.openErr = errors.New("no browser")
	if _, err := p.Checkout(ctx, domain.PlatformLinkedIn); err == nil {
		t.Fatalf("expected open error")
	}

	provider.openErr = nil
	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if _, err := p.Checkout(waitCtx, domain.PlatformLinkedIn); err != nil {
		t.Fatalf("slot leaked by failed open: %v", err)
	}
}

func TestCloseRetiresIdleAndStopsCheckouts(t *testing.T) {
	p, provider := testPool(t, 2)
	ctx := context.Background()

	s, _ := p.Checkout(ctx, domain.PlatformLinkedIn)
	p.Checkin(s, false)
	p.Close()

	if provider.closed != 1 {
		t.Fatalf("closed = %d, want idle session retired", provider.closed)
	}
	if _, err := p.Checkout(ctx, domain.PlatformLinkedIn); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("err = %v, want ErrPoolClosed", err)
	}
}
