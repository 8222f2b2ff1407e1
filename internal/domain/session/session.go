// Package session defines the Session domain entity: one tracked execution
// attempt of a command, with a lifecycle status and a phase state machine.
package session

import "time"

// Status represents the lifecycle state of a session.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
	StatusFailed    Status = "failed"
)

// Mode defines how strictly the exit gate is enforced.
type Mode string

const (
	ModeNormal     Mode = "normal"
	ModeAutonomous Mode = "autonomous"
)

// Session represents a single execution attempt of a command. Sessions are
// historical record: they are terminated, never deleted.
type Session struct {
	ID                  string    `json:"id"`
	Command             string    `json:"command"`
	Kind                string    `json:"kind,omitempty"`
	Status              Status    `json:"status"`
	Phase               Phase     `json:"phase"`
	Agent               string    `json:"agent,omitempty"`
	Model               string    `json:"model"`
	Iteration           int       `json:"iteration"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	AbandonCount        int       `json:"abandon_count"`
	Mode                Mode      `json:"execution_mode"`
	TokensIn            int64     `json:"tokens_in"`
	TokensOut           int64     `json:"tokens_out"`
	CostUSD             float64   `json:"cost_usd"`
	PlanID              string    `json:"plan_id,omitempty"`
	SprintID            string    `json:"sprint_id,omitempty"`
	ExitReason          string    `json:"exit_reason,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	EndedAt             *time.Time `json:"ended_at,omitempty"`
}

// Terminal reports whether the session has reached a terminal status.
func (s *Session) Terminal() bool {
	return IsTerminalStatus(s.Status)
}

// IsTerminalStatus reports whether st is one of the closed terminal statuses.
func IsTerminalStatus(st Status) bool {
	switch st {
	case StatusCompleted, StatusAborted, StatusFailed:
		return true
	}
	return false
}

// StartRequest holds the fields needed to start a new session.
type StartRequest struct {
	Command string `json:"command"`
	Kind    string `json:"kind,omitempty"`
	Agent   string `json:"agent,omitempty"`
	Model   string `json:"model,omitempty"`
	Mode    Mode   `json:"execution_mode,omitempty"`
	PlanID  string `json:"plan_id,omitempty"`
}
