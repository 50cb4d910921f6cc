package domain

import (
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of an Application.
type State string

const (
	StateDiscovered  State = "discovered"
	StateAnalyzed    State = "analyzed"
	StateTailored    State = "tailored"
	StateSubmitting  State = "submitting"
	StateSubmitted   State = "submitted"
	StateConfirmed   State = "confirmed"
	StateNeedsReview State = "needs_review"
	StateFailed      State = "failed"
	StateCancelled   State = "cancelled"
)

func (s State) Terminal() bool {
	switch s {
	case StateConfirmed, StateFailed, StateCancelled:
		return true
	}
	return false
}

// FailureKind classifies a stage failure for the retry policy.
type FailureKind string

const (
	FailureTransientNetwork FailureKind = "transient_network"
	FailureRateLimited      FailureKind = "rate_limited"
	FailureRejectedInput    FailureKind = "platform_rejected_input"
	FailureAutomationFlag   FailureKind = "automation_detected"
	FailureTimeout          FailureKind = "timeout"
)

// Retryable reports whether the kind may be retried at all. The attempt
// ceiling is enforced separately by the retry policy.
func (k FailureKind) Retryable() bool {
	switch k {
	case FailureTransientNetwork, FailureRateLimited, FailureTimeout:
		return true
	}
	return false
}

// Reason renders a kind as an operator-facing explanation.
func (k FailureKind) Reason() string {
	switch k {
	case FailureTransientNetwork:
		return "network error while talking to the platform"
	case FailureRateLimited:
		return "provider rate limit hit"
	case FailureRejectedInput:
		return "platform rejected the application content"
	case FailureAutomationFlag:
		return "platform flagged automated activity, manual review required"
	case FailureTimeout:
		return "stage timed out"
	}
	return string(k)
}

// Application is one attempt to submit a resume version against a job.
// Re-attempts reuse the same row and bump Attempts; a new row is never
// created for the same (job, candidate) while a non-terminal one exists.
type Application struct {
	ID           uuid.UUID    `json:"id"`
	JobID        uuid.UUID    `json:"job_id"`
	CandidateID  uuid.UUID    `json:"candidate_id"`
	ResumeID     uuid.UUID    `json:"resume_id"`
	State        State        `json:"state"`
	Attempts     int          `json:"attempts"`
	LastFailure  *FailureKind `json:"last_failure,omitempty"`
	FailReason   *string      `json:"fail_reason,omitempty"`
	Confirmation *string      `json:"confirmation,omitempty"`
	TestMode     bool         `json:"test_mode"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
