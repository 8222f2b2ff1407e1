package service

import (
	"fmt"
	"log/slog"

	"github.com/loopwarden/loopwarden/internal/domain/ruleset"
	"github.com/loopwarden/loopwarden/internal/domain/scope"
)

// Guard answers two independent questions, both pure functions of the
// declared policy and the candidate action: is this path inside the declared
// scope, and is this command safe to run. Verdicts are advisory-but-blocking;
// the guard never mutates session state itself.
type Guard struct {
	policy *scope.Policy
	log    *slog.Logger
}

// NewGuard creates a Guard over the loaded scope policy. policy may be nil:
// unscoped work is default-allow.
func NewGuard(policy *scope.Policy, log *slog.Logger) *Guard {
	return &Guard{policy: policy, log: log}
}

// CheckCommand matches a shell command against the fixed destructive
// deny-list. A match is denied unconditionally, independent of scope policy,
// execution mode, or escalation state.
func (g *Guard) CheckCommand(command string) Decision {
	if command == "" {
		return allowed("no command to check")
	}
	if rule := ruleset.MatchDanger(command); rule != nil {
		g.log.Warn("destructive command blocked", "code", rule.Code)
		return denied(rule.Code, fmt.Sprintf("command blocked: %s", rule.Reason))
	}
	return allowed("command matches no destructive pattern")
}

// CheckPath answers whether the candidate path is inside the declared scope.
func (g *Guard) CheckPath(path string) Decision {
	if path == "" {
		return allowed("no path to check")
	}
	v := g.policy.Evaluate(path)
	if !v.InScope {
		return denied("scope.out_of_scope", fmt.Sprintf("path %q is outside the declared scope: %s", path, v.Reason))
	}
	return allowed(v.Reason)
}

// Scoped reports whether a scope policy is actually loaded.
func (g *Guard) Scoped() bool { return g.policy != nil }
