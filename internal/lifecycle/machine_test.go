package lifecycle

import (
	"errors"
	"testing"

	"autoapply/internal/domain"
)

func TestNextTransitionTable(t *testing.T) {
	cases := []struct {
		name string
		from domain.State
		in   Input
		want domain.State
	}{
		{"analysis advances discovered", domain.StateDiscovered, InputAnalysisSucceeded, domain.StateAnalyzed},
		{"tailoring advances analyzed", domain.StateAnalyzed, InputTailoringSucceeded, domain.StateTailored},
		{"unattended submit", domain.StateTailored, InputSubmitReady, domain.StateSubmitting},
		{"approval gate", domain.StateTailored, InputApprovalRequired, domain.StateNeedsReview},
		{"approved resumes submit", domain.StateNeedsReview, InputApproved, domain.StateSubmitting},
		{"rejected cancels", domain.StateNeedsReview, InputRejected, domain.StateCancelled},
		{"confirmed submission", domain.StateSubmitting, InputSubmitConfirmed, domain.StateConfirmed},
		{"submit retry rolls back", domain.StateSubmitting, InputStageRetry, domain.StateTailored},
		{"analysis retries in place", domain.StateDiscovered, InputStageRetry, domain.StateDiscovered},
		{"tailoring retries in place", domain.StateAnalyzed, InputStageRetry, domain.StateAnalyzed},
		{"submit escalates to review", domain.StateSubmitting, InputApprovalRequired, domain.StateNeedsReview},
		{"submit fails terminally", domain.StateSubmitting, InputStageFailed, domain.StateFailed},
		{"analysis fails terminally", domain.StateDiscovered, InputStageFailed, domain.StateFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Next(tc.from, tc.in)
			if err != nil {
				t.Fatalf("Next(%s, %s) error: %v", tc.from, tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("Next(%s, %s) = %s, want %s", tc.from, tc.in, got, tc.want)
			}
		})
	}
}

func TestCancelFromAnyNonTerminal(t *testing.T) {
	nonTerminal := []domain.State{
		domain.StateDiscovered,
		domain.StateAnalyzed,
		domain.StateTailored,
		domain.StateSubmitting,
		domain.StateNeedsReview,
	}
	for _, from := range nonTerminal {
		got, err := Next(from, InputCancelRequested)
		if err != nil {
			t.Fatalf("cancel from %s: %v", from, err)
		}
		if got != domain.StateCancelled {
			t.Fatalf("cancel from %s = %s, want cancelled", from, got)
		}
	}
}

func TestTerminalStatesRejectEveryInput(t *testing.T) {
	terminal := []domain.State{domain.StateConfirmed, domain.StateFailed, domain.StateCancelled}
	inputs := []Input{
		InputAnalysisSucceeded, InputTailoringSucceeded, InputSubmitReady,
		InputApprovalRequired, InputApproved, InputRejected,
		InputSubmitConfirmed, InputStageRetry, InputStageFailed,
		InputCancelRequested,
	}
	for _, from := range terminal {
		for _, in := range inputs {
			got, err := Next(from, in)
			if !errors.Is(err, ErrTerminalState) {
				t.Fatalf("Next(%s, %s) err = %v, want ErrTerminalState", from, in, err)
			}
			if got != from {
				t.Fatalf("Next(%s, %s) moved state to %s", from, in, got)
			}
		}
	}
}

func TestIllegalInputLeavesStateUntouched(t *testing.T) {
	cases := []struct {
		from domain.State
		in   Input
	}{
		{domain.StateDiscovered, InputSubmitConfirmed},
		{domain.StateAnalyzed, InputApproved},
		{domain.StateTailored, InputAnalysisSucceeded},
		{domain.StateNeedsReview, InputStageRetry},
		{domain.StateSubmitting, InputTailoringSucceeded},
	}
	for _, tc := range cases {
		got, err := Next(tc.from, tc.in)
		if !errors.Is(err, ErrIllegalTransition) {
			t.Fatalf("Next(%s, %s) err = %v, want ErrIllegalTransition", tc.from, tc.in, err)
		}
		if got != tc.from {
			t.Fatalf("Next(%s, %s) moved state to %s", tc.from, tc.in, got)
		}
	}
}

func TestLegal(t *testing.T) {
	cases := []struct {
		from domain.State
		to   domain.State
		want bool
	}{
		{domain.StateDiscovered, domain.StateAnalyzed, true},
		{domain.StateSubmitting, domain.StateTailored, true},
		{domain.StateTailored, domain.StateCancelled, true},
		{domain.StateDiscovered, domain.StateConfirmed, false},
		{domain.StateConfirmed, domain.StateCancelled, false},
		{domain.StateFailed, domain.StateDiscovered, false},
	}
	for _, tc := range cases {
		if got := Legal(tc.from, tc.to); got != tc.want {
			t.Fatalf("Legal(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestStageFor(t *testing.T) {
	cases := []struct {
		state domain.State
		stage Stage
		ok    bool
	}{
		{domain.StateDiscovered, StageAnalysis, true},
		{domain.StateAnalyzed, StageTailoring, true},
		{domain.StateTailored, StageSubmission, true},
		{domain.StateSubmitting, StageSubmission, true},
		{domain.StateNeedsReview, "", false},
		{domain.StateConfirmed, "", false},
	}
	for _, tc := range cases {
		stage, ok := StageFor(tc.state)
		if ok != tc.ok || stage != tc.stage {
			t.Fatalf("StageFor(%s) = (%s, %v), want (%s, %v)", tc.state, stage, ok, tc.stage, tc.ok)
		}
	}
}
