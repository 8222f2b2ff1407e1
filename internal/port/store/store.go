// Package store defines the persistence interface the controller consumes.
package store

import (
	"context"

	"github.com/loopwarden/loopwarden/internal/domain/event"
	"github.com/loopwarden/loopwarden/internal/domain/session"
)

// Store translates session/event/state concepts into storage operations.
// Implementations must route every query through the safesql layer.
type Store interface {
	// StartSession inserts a session row in running status with zeroed
	// counters. Returns domain.ErrConflict while another session is running.
	StartSession(ctx context.Context, req session.StartRequest) (*session.Session, error)
	// EndSession stamps ended_at, sets a terminal status and writes the
	// terminal event. Terminal states are write-once.
	EndSession(ctx context.Context, id string, status session.Status, reason string) error
	// CurrentSession resolves the most recent running session, or
	// domain.ErrNotFound when none is running.
	CurrentSession(ctx context.Context) (*session.Session, error)
	GetSession(ctx context.Context, id string) (*session.Session, error)

	GetState(ctx context.Context, sessionID, key string) (string, error)
	SetState(ctx context.Context, sessionID, key, value string) error

	// LogEvent appends to the audit trail; events are never updated or deleted.
	LogEvent(ctx context.Context, ev *event.Event) error
	ListEvents(ctx context.Context, sessionID string) ([]event.Event, error)

	// Counter mutations pair the increment with its event in one transaction.
	BumpIteration(ctx context.Context, sessionID string) (int, error)
	IncrementFailures(ctx context.Context, sessionID string) (int, error)
	ResetFailures(ctx context.Context, sessionID string) error
	BumpAbandon(ctx context.Context, sessionID string) (int, error)

	SetPhase(ctx context.Context, sessionID string, phase session.Phase) error
	SetModel(ctx context.Context, sessionID, model string) error
	AddUsage(ctx context.Context, sessionID string, tokensIn, tokensOut int64, costUSD float64) error

	// SaveCheckpoint is best-effort: it must never block the operation it
	// protects, so an unresolvable session is not an error.
	SaveCheckpoint(ctx context.Context, message string) error
	ListCheckpoints(ctx context.Context, sessionID string) ([]event.Checkpoint, error)
}
