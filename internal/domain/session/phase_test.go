package session

import (
	"errors"
	"testing"

	"github.com/loopwarden/loopwarden/internal/domain"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Phase
		ok       bool
	}{
		{PhaseInitializing, PhaseInterview, true},
		{PhaseInitializing, PhaseResearch, true},
		{PhaseInterview, PhaseResearch, true},
		{PhaseResearch, PhasePlanning, true},
		{PhasePlanning, PhaseExecuting, true},
		{PhaseExecuting, PhaseQualityCheck, true},
		{PhaseQualityCheck, PhaseBugCouncil, true},
		{PhaseBugCouncil, PhaseExecuting, true},
		{PhaseQualityCheck, PhaseCompleted, true},
		{PhaseExecuting, PhaseExecuting, true}, // self-transition is a no-op
		{PhaseCompleted, PhaseExecuting, false},
		{PhaseAborted, PhaseInterview, false},
		{PhaseFailed, PhaseExecuting, false},
		{PhaseInterview, PhaseQualityCheck, false},
		{PhaseInitializing, PhaseCompleted, false},
		{Phase("bogus"), PhaseExecuting, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestCheckTransitionWrapsValidation(t *testing.T) {
	if err := CheckTransition(PhaseCompleted, PhaseExecuting); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err := CheckTransition(PhasePlanning, PhaseExecuting); err != nil {
		t.Fatalf("valid transition rejected: %v", err)
	}
}

func TestTerminalPhase(t *testing.T) {
	for _, p := range []Phase{PhaseCompleted, PhaseAborted, PhaseFailed} {
		if !TerminalPhase(p) {
			t.Errorf("TerminalPhase(%s) = false", p)
		}
	}
	for _, p := range []Phase{PhaseInitializing, PhaseExecuting, PhaseBugCouncil} {
		if TerminalPhase(p) {
			t.Errorf("TerminalPhase(%s) = true", p)
		}
	}
}
