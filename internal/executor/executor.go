package executor

import (
	"context"
	"errors"
	"net"
	"strings"

	"autoapply/internal/domain"
	"autoapply/internal/session"
)

// Failure is a classified stage failure. Executors never return a bare
// error to the scheduler: every failure path is classified so the retry
// policy can act on it.
type Failure struct {
	Kind domain.FailureKind
	Err  error
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	if f.Err != nil {
		return string(f.Kind) + ": " + f.Err.Error()
	}
	return string(f.Kind)
}

func (f *Failure) Unwrap() error {
	if f == nil {
		return nil
	}
	return f.Err
}

func NewFailure(kind domain.FailureKind, err error) *Failure {
	return &Failure{Kind: kind, Err: err}
}

// Classify maps an arbitrary error onto the failure taxonomy. Anything
// unrecognized counts as transient: retrying a retryable-looking error is
// cheap, mislabeling a data problem as transient is bounded by the
// attempt ceiling.
func Classify(err error) *Failure {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewFailure(domain.FailureTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return NewFailure(domain.FailureTimeout, err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota"):
		return NewFailure(domain.FailureRateLimited, err)
	case strings.Contains(msg, "captcha") || strings.Contains(msg, "unusual activity") || strings.Contains(msg, "automation"):
		return NewFailure(domain.FailureAutomationFlag, err)
	case strings.Contains(msg, "400") || strings.Contains(msg, "invalid") || strings.Contains(msg, "rejected"):
		return NewFailure(domain.FailureRejectedInput, err)
	}
	return NewFailure(domain.FailureTransientNetwork, err)
}

// Analysis extracts structured requirements from raw posting text.
type Analysis interface {
	Analyze(ctx context.Context, postingText string) ([]domain.Requirement, *Failure)
}

// Tailoring derives a new resume version for a job's requirements.
type Tailoring interface {
	Tailor(ctx context.Context, base domain.Resume, reqs []domain.Requirement, mode domain.TailoringMode) (domain.Resume, *Failure)
}

// Submission pushes an application through a leased browser session and
// returns the platform confirmation token.
type Submission interface {
	Submit(ctx context.Context, sess *session.Session, resume domain.Resume, job domain.Job) (string, *Failure)
}

// Discovery finds postings on a platform matching a query.
type Discovery interface {
	Discover(ctx context.Context, platform domain.Platform, query string, limit int) ([]domain.Job, *Failure)
}
