package lifecycle

import (
	"errors"
	"fmt"

	"autoapply/internal/domain"
)

// Input is a transition trigger fed to the machine by the scheduler (or
// by a manual control operation).
type Input string

const (
	InputAnalysisSucceeded  Input = "analysis_succeeded"
	InputTailoringSucceeded Input = "tailoring_succeeded"
	InputSubmitReady        Input = "submit_ready"     // automation level allows unattended submit
	InputApprovalRequired   Input = "approval_required" // automation level wants a human
	InputApproved           Input = "approved"
	InputRejected           Input = "rejected"
	InputSubmitConfirmed    Input = "submit_confirmed"
	InputStageRetry         Input = "stage_retry"   // retryable failure, attempts below ceiling
	InputStageFailed        Input = "stage_failed"  // non-retryable or ceiling reached
	InputCancelRequested    Input = "cancel_requested"
)

var (
	ErrIllegalTransition = errors.New("illegal transition")
	ErrTerminalState     = errors.New("application is in a terminal state")
)

type key struct {
	from domain.State
	in   Input
}

// transitions is the closed transition table. Anything not listed is
// rejected by Next.
var transitions = map[key]domain.State{
	{domain.StateDiscovered, InputAnalysisSucceeded}:  domain.StateAnalyzed,
	{domain.StateAnalyzed, InputTailoringSucceeded}:   domain.StateTailored,
	{domain.StateTailored, InputSubmitReady}:          domain.StateSubmitting,
	{domain.StateTailored, InputApprovalRequired}:     domain.StateNeedsReview,
	{domain.StateNeedsReview, InputApproved}:          domain.StateSubmitting,
	{domain.StateNeedsReview, InputRejected}:          domain.StateCancelled,
	{domain.StateSubmitting, InputSubmitConfirmed}:    domain.StateConfirmed,
	{domain.StateSubmitting, InputApprovalRequired}:   domain.StateNeedsReview,
	{domain.StateSubmitting, InputStageRetry}:         domain.StateTailored,
	{domain.StateSubmitting, InputStageFailed}:        domain.StateFailed,
	{domain.StateDiscovered, InputStageRetry}:         domain.StateDiscovered,
	{domain.StateAnalyzed, InputStageRetry}:           domain.StateAnalyzed,
	{domain.StateDiscovered, InputStageFailed}:        domain.StateFailed,
	{domain.StateAnalyzed, InputStageFailed}:          domain.StateFailed,
	{domain.StateTailored, InputStageFailed}:          domain.StateFailed,
}

// Next resolves one transition. Terminal states reject every input, and
// an unknown (state, input) pair is rejected with ErrIllegalTransition;
// in both cases the caller's state is left untouched.
func Next(from domain.State, in Input) (domain.State, error) {
	if from.Terminal() {
		return from, fmt.Errorf("%w: %s", ErrTerminalState, from)
	}
	if in == InputCancelRequested {
		return domain.StateCancelled, nil
	}
	to, ok := transitions[key{from, in}]
	if !ok {
		return from, fmt.Errorf("%w: %s + %s", ErrIllegalTransition, from, in)
	}
	return to, nil
}

// Legal reports whether any input leads from one state to another,
// counting cancellation of any non-terminal state.
func Legal(from, to domain.State) bool {
	if from.Terminal() {
		return false
	}
	if to == domain.StateCancelled {
		return true
	}
	for k, v := range transitions {
		if k.from == from && v == to {
			return true
		}
	}
	return false
}

// StageFor maps a non-terminal state to the stage the scheduler must run
// next. ok is false for states that wait on something other than a stage
// executor (human review) and for terminal states.
func StageFor(s domain.State) (Stage, bool) {
	switch s {
	case domain.StateDiscovered:
		return StageAnalysis, true
	case domain.StateAnalyzed:
		return StageTailoring, true
	case domain.StateTailored, domain.StateSubmitting:
		return StageSubmission, true
	}
	return "", false
}

// Stage is one phase of the lifecycle.
type Stage string

const (
	StageDiscovery  Stage = "discovery"
	StageAnalysis   Stage = "analysis"
	StageTailoring  Stage = "tailoring"
	StageSubmission Stage = "submission"
)
