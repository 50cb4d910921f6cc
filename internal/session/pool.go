package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"autoapply/internal/domain"

	"github.com/google/uuid"
)

var ErrPoolClosed = errors.New("session pool closed")

// Session is one live browser-automation session bound to a platform.
// Between Checkout and Checkin exactly one caller owns it.
type Session struct {
	ID       uuid.UUID
	Platform domain.Platform

	handle   Handle
	failures int // consecutive errors, reset on success
}

// Handle is whatever the provider needs to drive the session.
type Handle interface {
	Run(ctx context.Context, script string) error
	Close() error
}

// Provider opens and closes the underlying browser sessions.
type Provider interface {
	Open(ctx context.Context, platform domain.Platform) (Handle, error)
	Close(h Handle) error
}

type platformPool struct {
	slots chan struct{} // one token per permitted concurrent checkout
	mu    sync.Mutex
	idle  []*Session
}

// Pool keeps up to max live sessions per platform. Checkout blocks until
// a slot frees or the context ends; a session that errors twice in a row
// is retired and the next checkout opens a fresh one.
type Pool struct {
	mu       sync.Mutex
	max      int
	provider Provider
	pools    map[domain.Platform]*platformPool
	closed   bool
	logger   *log.Logger
}

func NewPool(provider Provider, maxPerPlatform int, logger *log.Logger) *Pool {
	if maxPerPlatform <= 0 {
		maxPerPlatform = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Pool{
		max:      maxPerPlatform,
		provider: provider,
		pools:    make(map[domain.Platform]*platformPool),
		logger:   logger,
	}
}

// Checkout hands out a session for platform, reusing an idle one when
// possible. The per-platform ceiling is enforced by the slot channel:
// checked-out plus idle sessions never exceed max.
func (p *Pool) Checkout(ctx context.Context, platform domain.Platform) (*Session, error) {
	if p == nil || p.provider == nil {
		return nil, fmt.Errorf("nil pool/provider")
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	pp := p.poolForLocked(platform)
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-pp.slots:
	}

	pp.mu.Lock()
	if n := len(pp.idle); n > 0 {
		s := pp.idle[n-1]
		pp.idle = pp.idle[:n-1]
		pp.mu.Unlock()
		return s, nil
	}
	pp.mu.Unlock()

	h, err := p.provider.Open(ctx, platform)
	if err != nil {
		pp.slots <- struct{}{}
		return nil, err
	}
	return &Session{ID: uuid.New(), Platform: platform, handle: h}, nil
}

// Checkin returns a session. failed marks the use as errored; two
// consecutive failures retire the session.
func (p *Pool) Checkin(s *Session, failed bool) {
	if p == nil || s == nil {
		return
	}
	if failed {
		s.failures++
	} else {
		s.failures = 0
	}

	p.mu.Lock()
	closed := p.closed
	pp := p.poolForLocked(s.Platform)
	p.mu.Unlock()

	retire := closed || s.failures >= 2
	if retire {
		if err := p.provider.Close(s.handle); err != nil {
			p.logger.Printf("session close error | platform=%s err=%v", s.Platform, err)
		}
		if s.failures >= 2 {
			p.logger.Printf("session retired | platform=%s id=%s consecutive_failures=%d", s.Platform, s.ID, s.failures)
		}
	} else {
		pp.mu.Lock()
		pp.idle = append(pp.idle, s)
		pp.mu.Unlock()
	}

	pp.slots <- struct{}{}
}

// Run drives the underlying handle. Failure accounting happens at
// Checkin, so callers report the outcome there.
func (s *Session) Run(ctx context.Context, script string) error {
	if s == nil || s.handle == nil {
		return fmt.Errorf("nil session")
	}
	return s.handle.Run(ctx, script)
}

// Close retires all idle sessions; subsequent checkouts fail.
func (p *Pool) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.closed = true
	pools := make([]*platformPool, 0, len(p.pools))
	for _, pp := range p.pools {
		pools = append(pools, pp)
	}
	p.mu.Unlock()

	for _, pp := range pools {
		pp.mu.Lock()
		idle := pp.idle
		pp.idle = nil
		pp.mu.Unlock()
		for _, s := range idle {
			if err := p.provider.Close(s.handle); err != nil {
				p.logger.Printf("session close error | platform=%s err=%v", s.Platform, err)
			}
		}
	}
}

func (p *Pool) poolForLocked(platform domain.Platform) *platformPool {
	pp, ok := p.pools[platform]
	if !ok {
		pp = &platformPool{slots: make(chan struct{}, p.max)}
		for i := 0; i < p.max; i++ {
			pp.slots <- struct{}{}
		}
		p.pools[platform] = pp
	}
	return pp
}
