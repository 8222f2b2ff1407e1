package session

import (
	"fmt"

	"github.com/loopwarden/loopwarden/internal/domain"
)

// validStatuses enumerates all valid session statuses.
var validStatuses = map[Status]bool{
	StatusRunning:   true,
	StatusCompleted: true,
	StatusAborted:   true,
	StatusFailed:    true,
}

// validModes enumerates all valid execution modes.
var validModes = map[Mode]bool{
	ModeNormal:     true,
	ModeAutonomous: true,
}

// ValidStatus reports whether st is a recognized status.
func ValidStatus(st Status) bool { return validStatuses[st] }

// ValidTerminalStatus returns a validation error unless st is one of the
// closed terminal statuses {completed, aborted, failed}.
func ValidTerminalStatus(st Status) error {
	if !IsTerminalStatus(st) {
		return fmt.Errorf("invalid terminal status %q: %w", st, domain.ErrValidation)
	}
	return nil
}

// Validate checks that a StartRequest has all required fields and valid values.
func (r *StartRequest) Validate() error {
	if r.Command == "" {
		return fmt.Errorf("command is required: %w", domain.ErrValidation)
	}
	if r.Mode != "" && !validModes[r.Mode] {
		return fmt.Errorf("invalid execution_mode %q: %w", r.Mode, domain.ErrValidation)
	}
	return nil
}
