// Package event defines the immutable Event entity forming the audit trail.
// Events are append-only and ordered by insertion; they are the only way to
// reconstruct why the controller decided what it decided.
package event

import (
	"encoding/json"
	"time"

	"github.com/loopwarden/loopwarden/internal/domain/session"
)

// Type identifies the kind of event.
type Type string

const (
	TypeSessionStarted  Type = "session.started"
	TypeSessionEnded    Type = "session.ended"
	TypePhaseChanged    Type = "session.phase_changed"
	TypeToolCalled      Type = "action.tool_called"
	TypeActionResult    Type = "action.result"
	TypeIterationCapped Type = "guard.iteration_capped"
	TypeBreakerTripped  Type = "guard.breaker_tripped"
	TypeEscalated       Type = "guard.escalated"
	TypeExitBlocked     Type = "guard.exit_blocked"
	TypeExitAllowed     Type = "guard.exit_allowed"
	TypeAbandonDetected Type = "guard.abandon_detected"
	TypeScopeViolation  Type = "guard.scope_violation"
	TypeCommandBlocked  Type = "guard.command_blocked"
	TypeHumanNotice     Type = "guard.human_notice"
	TypeDegraded        Type = "store.degraded"
	TypeCheckpoint      Type = "session.checkpoint"
)

// Category groups event types for filtering in audit queries.
type Category string

const (
	CategoryLifecycle Category = "lifecycle"
	CategoryAction    Category = "action"
	CategoryGuard     Category = "guard"
	CategoryStore     Category = "store"
)

// Event represents a single immutable record in a session's audit trail.
type Event struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"session_id"`
	Type      Type            `json:"type"`
	Category  Category        `json:"category"`
	Phase     session.Phase   `json:"phase,omitempty"`
	Agent     string          `json:"agent,omitempty"`
	Model     string          `json:"model,omitempty"`
	Iteration int             `json:"iteration"`
	Status    string          `json:"status,omitempty"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	TokensIn  int64           `json:"tokens_in,omitempty"`
	TokensOut int64           `json:"tokens_out,omitempty"`
	CostUSD   float64         `json:"cost_usd,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Checkpoint is a lightweight durable marker written before a sanctioned exit
// or a destructive operation: session id + message + timestamp, no payload.
type Checkpoint struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
