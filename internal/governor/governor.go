package governor

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrOverConcurrency = errors.New("over_concurrency")
	ErrBudgetExhausted = errors.New("budget_exhausted")
	ErrUnknownResource = errors.New("unknown resource")
	ErrLeaseNotHeld    = errors.New("lease not held")
)

// Limits is the per-resource policy: a token-bucket request budget over a
// sliding window plus a ceiling on simultaneous leases.
type Limits struct {
	Capacity      int
	Window        time.Duration
	MaxConcurrent int
	LeaseTTL      time.Duration
}

// Lease is an ephemeral grant. It lives only in the governor's memory and
// is rebuilt from zero on restart.
type Lease struct {
	ID       uuid.UUID
	Resource string
	Holder   string
	Expiry   time.Time
}

type bucket struct {
	limits     Limits
	tokens     float64
	lastRefill time.Time
	leases     map[uuid.UUID]Lease
}

// Governor tracks budgets and concurrency per external resource and
// grants leases against them. All state is in-memory; a cold start sees
// every resource unleased.
type Governor struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
	logger  *log.Logger
}

func New(logger *log.Logger) *Governor {
	if logger == nil {
		logger = log.Default()
	}
	return &Governor{
		buckets: make(map[string]*bucket),
		now:     time.Now,
		logger:  logger,
	}
}

// Configure registers or replaces the limits for a resource. Existing
// leases survive a reconfigure.
func (g *Governor) Configure(resource string, l Limits) {
	if g == nil || resource == "" {
		return
	}
	if l.Capacity <= 0 {
		l.Capacity = 1
	}
	if l.Window <= 0 {
		l.Window = time.Minute
	}
	if l.MaxConcurrent <= 0 {
		l.MaxConcurrent = 1
	}
	if l.LeaseTTL <= 0 {
		l.LeaseTTL = 5 * time.Minute
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if b, ok := g.buckets[resource]; ok {
		b.limits = l
		if b.tokens > float64(l.Capacity) {
			b.tokens = float64(l.Capacity)
		}
		return
	}
	g.buckets[resource] = &bucket{
		limits:     l,
		tokens:     float64(l.Capacity),
		lastRefill: g.now(),
		leases:     make(map[uuid.UUID]Lease),
	}
}

// Acquire grants a lease or returns a denial reason. Expired leases are
// reclaimed first, so a crashed holder cannot pin a resource forever.
func (g *Governor) Acquire(resource, holder string) (Lease, error) {
	if g == nil {
		return Lease{}, ErrUnknownResource
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.buckets[resource]
	if !ok {
		return Lease{}, fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}

	now := g.now()
	g.reclaimLocked(b, now)
	g.refillLocked(b, now)

	if len(b.leases) >= b.limits.MaxConcurrent {
		return Lease{}, ErrOverConcurrency
	}
	if b.tokens < 1 {
		return Lease{}, ErrBudgetExhausted
	}

	b.tokens--
	l := Lease{
		ID:       uuid.New(),
		Resource: resource,
		Holder:   holder,
		Expiry:   now.Add(b.limits.LeaseTTL),
	}
	b.leases[l.ID] = l
	return l, nil
}

// Release returns concurrency capacity. Budget tokens are not refunded,
// the request was made either way.
func (g *Governor) Release(l Lease) error {
	if g == nil {
		return ErrUnknownResource
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.buckets[l.Resource]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, l.Resource)
	}
	if _, held := b.leases[l.ID]; !held {
		return ErrLeaseNotHeld
	}
	delete(b.leases, l.ID)
	return nil
}

// RefillInterval is the time one token takes to come back, used by the
// retry policy for rate_limited delays.
func (g *Governor) RefillInterval(resource string) time.Duration {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.buckets[resource]
	if !ok || b.limits.Capacity <= 0 {
		return 0
	}
	return b.limits.Window / time.Duration(b.limits.Capacity)
}

// Outstanding reports live leases for a resource.
func (g *Governor) Outstanding(resource string) int {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.buckets[resource]
	if !ok {
		return 0
	}
	g.reclaimLocked(b, g.now())
	return len(b.leases)
}

func (g *Governor) refillLocked(b *bucket, now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	rate := float64(b.limits.Capacity) / float64(b.limits.Window)
	b.tokens += rate * float64(elapsed)
	if b.tokens > float64(b.limits.Capacity) {
		b.tokens = float64(b.limits.Capacity)
	}
	b.lastRefill = now
}

func (g *Governor) reclaimLocked(b *bucket, now time.Time) {
	for id, l := range b.leases {
		if now.After(l.Expiry) {
			delete(b.leases, id)
			g.logger.Printf("governor lease reclaimed | resource=%s holder=%s", l.Resource, l.Holder)
		}
	}
}
