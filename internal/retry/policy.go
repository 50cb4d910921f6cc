package retry

import (
	"math"
	"math/rand"
	"time"

	"autoapply/internal/domain"
)

// Verdict is the policy's answer for one failed attempt.
type Verdict int

const (
	RetryNow Verdict = iota
	RetryAfter
	Fail
	// Review means the failure must go to a human instead of being
	// retried or terminally failed (automation-detection signals).
	Review
)

// Policy is a pure decision function, safe for concurrent use.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// RateLimitDelay is the bucket refill interval of the denied
	// resource, used verbatim for rate_limited failures.
	RateLimitDelay time.Duration

	// rand source hook for deterministic tests
	Jitter func(max time.Duration) time.Duration
}

func NewPolicy(maxAttempts int, base, cap, rateLimit time.Duration) *Policy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if base <= 0 {
		base = 2 * time.Second
	}
	if cap <= 0 {
		cap = 5 * time.Minute
	}
	return &Policy{
		MaxAttempts:    maxAttempts,
		BaseDelay:      base,
		MaxDelay:       cap,
		RateLimitDelay: rateLimit,
	}
}

// Decide maps (failure kind, attempt count) to a verdict. attempt is the
// count AFTER the failed try, so attempt >= MaxAttempts always fails.
func (p *Policy) Decide(kind domain.FailureKind, attempt int) (Verdict, time.Duration) {
	if p == nil {
		return Fail, 0
	}
	if kind == domain.FailureAutomationFlag {
		return Review, 0
	}
	if !kind.Retryable() || attempt >= p.MaxAttempts {
		return Fail, 0
	}

	switch kind {
	case domain.FailureRateLimited:
		d := p.RateLimitDelay
		if d <= 0 {
			d = p.BaseDelay
		}
		return RetryAfter, d
	case domain.FailureTimeout:
		return RetryAfter, p.BaseDelay
	default:
		return RetryAfter, p.backoff(attempt)
	}
}

// backoff grows exponentially with jitter, capped at MaxDelay.
func (p *Policy) backoff(attempt int) time.Duration {
	d := time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	return d + p.jitter(d/4)
}

func (p *Policy) jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	if p.Jitter != nil {
		return p.Jitter(max)
	}
	return time.Duration(rand.Int63n(int64(max)))
}
