package session

import (
	"fmt"

	"github.com/loopwarden/loopwarden/internal/domain"
)

// Phase represents where a session is in its execution pipeline.
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseInterview    Phase = "interview"
	PhaseResearch     Phase = "research"
	PhasePlanning     Phase = "planning"
	PhaseExecuting    Phase = "executing"
	PhaseQualityCheck Phase = "quality_check"
	PhaseBugCouncil   Phase = "bug_council"
	PhaseCompleted    Phase = "completed"
	PhaseAborted      Phase = "aborted"
	PhaseFailed       Phase = "failed"
)

// phaseTransitions enumerates the legal forward edges. quality_check may loop
// back to executing, and executing/quality_check may detour through
// bug_council and back. Terminal phases have no outgoing edges.
var phaseTransitions = map[Phase][]Phase{
	PhaseInitializing: {PhaseInterview, PhaseResearch, PhasePlanning, PhaseExecuting, PhaseAborted, PhaseFailed},
	PhaseInterview:    {PhaseResearch, PhasePlanning, PhaseAborted, PhaseFailed},
	PhaseResearch:     {PhasePlanning, PhaseAborted, PhaseFailed},
	PhasePlanning:     {PhaseExecuting, PhaseAborted, PhaseFailed},
	PhaseExecuting:    {PhaseQualityCheck, PhaseBugCouncil, PhaseCompleted, PhaseAborted, PhaseFailed},
	PhaseQualityCheck: {PhaseExecuting, PhaseBugCouncil, PhaseCompleted, PhaseAborted, PhaseFailed},
	PhaseBugCouncil:   {PhaseExecuting, PhaseAborted, PhaseFailed},
}

// validPhases enumerates all recognized phases.
var validPhases = map[Phase]bool{
	PhaseInitializing: true,
	PhaseInterview:    true,
	PhaseResearch:     true,
	PhasePlanning:     true,
	PhaseExecuting:    true,
	PhaseQualityCheck: true,
	PhaseBugCouncil:   true,
	PhaseCompleted:    true,
	PhaseAborted:      true,
	PhaseFailed:       true,
}

// ValidPhase reports whether p is a recognized phase.
func ValidPhase(p Phase) bool { return validPhases[p] }

// TerminalPhase reports whether p permits no further transitions.
func TerminalPhase(p Phase) bool {
	return p == PhaseCompleted || p == PhaseAborted || p == PhaseFailed
}

// CanTransition reports whether the phase machine permits from -> to.
func CanTransition(from, to Phase) bool {
	if from == to {
		return true
	}
	for _, next := range phaseTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns a validation error when from -> to is not a legal
// edge of the phase machine.
func CheckTransition(from, to Phase) error {
	if !validPhases[to] {
		return fmt.Errorf("%w: invalid phase %q", domain.ErrValidation, to)
	}
	if TerminalPhase(from) {
		return fmt.Errorf("%w: phase %q is terminal", domain.ErrValidation, from)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: illegal phase transition %q -> %q", domain.ErrValidation, from, to)
	}
	return nil
}
