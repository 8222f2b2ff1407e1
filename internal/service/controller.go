package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loopwarden/loopwarden/internal/config"
	"github.com/loopwarden/loopwarden/internal/domain"
	"github.com/loopwarden/loopwarden/internal/domain/escalation"
	"github.com/loopwarden/loopwarden/internal/domain/event"
	"github.com/loopwarden/loopwarden/internal/domain/ruleset"
	"github.com/loopwarden/loopwarden/internal/domain/session"
	"github.com/loopwarden/loopwarden/internal/port/store"
	"github.com/loopwarden/loopwarden/internal/resilience"
)

// readOnlyTools are allowed through when the store is unavailable. Anything
// else is treated as potentially destructive and denied in degraded mode.
var readOnlyTools = map[string]bool{
	"Read": true,
	"Glob": true,
	"Grep": true,
}

// ActionRequest describes a proposed action arriving at the before-action
// interception point.
type ActionRequest struct {
	Tool    string `json:"tool"`
	Command string `json:"command,omitempty"`
	Path    string `json:"path,omitempty"`
}

// ActionResult describes an executed action arriving at the after-action
// interception point.
type ActionResult struct {
	Output    string  `json:"output"`
	TokensIn  int64   `json:"tokens_in,omitempty"`
	TokensOut int64   `json:"tokens_out,omitempty"`
	CostUSD   float64 `json:"cost_usd,omitempty"`
}

// Outcome is the after-action report: classification, counters and any
// escalation signal the caller must act on.
type Outcome struct {
	Decision
	Failed      bool   `json:"failed"`
	Failures    int    `json:"consecutive_failures"`
	Tripped     bool   `json:"breaker_tripped"`
	EscalatedTo string `json:"escalated_to,omitempty"`
}

// Controller owns session lifecycle transitions and evaluates the guard
// checks on every interception event. Each invocation re-reads state from
// the store; nothing is cached across invocations.
type Controller struct {
	store   store.Store
	guard   *Guard
	ladder  *escalation.Ladder
	cfg     config.Guard
	breaker *resilience.Breaker
	log     *slog.Logger
}

// NewController wires the controller. The breaker guards store access so
// that guard evaluation degrades instead of failing destructively.
func NewController(st store.Store, guard *Guard, ladder *escalation.Ladder, cfg config.Guard, breaker *resilience.Breaker, log *slog.Logger) *Controller {
	return &Controller{store: st, guard: guard, ladder: ladder, cfg: cfg, breaker: breaker, log: log}
}

// StartSession starts a new session after resolving any stale running one.
// A pre-existing running session is an expected recoverable condition: with
// force it is terminated as aborted, otherwise the conflict is surfaced.
func (c *Controller) StartSession(ctx context.Context, req session.StartRequest, force bool) (*session.Session, error) {
	if req.Model == "" {
		req.Model = c.ladder.Default()
	}
	if req.Mode == "" {
		req.Mode = session.ModeNormal
		if c.cfg.AutonomousMode {
			req.Mode = session.ModeAutonomous
		}
	}

	stale, err := c.store.CurrentSession(ctx)
	switch {
	case err == nil:
		if !force {
			return nil, fmt.Errorf("session %s is still running; resume it or force-terminate: %w", stale.ID, domain.ErrConflict)
		}
		c.log.Warn("force-terminating stale session", "session_id", stale.ID)
		if err := c.store.EndSession(ctx, stale.ID, session.StatusAborted, "stale running session force-terminated at start"); err != nil {
			return nil, fmt.Errorf("terminate stale session: %w", err)
		}
	case errors.Is(err, domain.ErrNotFound):
		// nothing running
	default:
		return nil, err
	}

	return c.store.StartSession(ctx, req)
}

// EndSession checkpoints and terminates the current session.
func (c *Controller) EndSession(ctx context.Context, status session.Status, reason string) error {
	cur, err := c.store.CurrentSession(ctx)
	if err != nil {
		return err
	}
	if err := c.store.SaveCheckpoint(ctx, fmt.Sprintf("ending session with status %s", status)); err != nil {
		c.log.Warn("checkpoint before end failed", "error", err)
	}
	return c.store.EndSession(ctx, cur.ID, status, reason)
}

// BeforeAction evaluates a proposed file/command action. Destructive
// commands are denied before anything else; that check needs no store and
// is never downgraded.
func (c *Controller) BeforeAction(ctx context.Context, req ActionRequest) Decision {
	if d := c.guard.CheckCommand(req.Command); !d.Allow {
		c.recordGuardEvent(ctx, event.TypeCommandBlocked, d, req.Tool)
		return d
	}

	if d := c.guard.CheckPath(req.Path); !d.Allow {
		c.recordGuardEvent(ctx, event.TypeScopeViolation, d, req.Tool)
		return d
	}

	cur, err := c.resolveSession(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return denied("session.none", "no running session; start a session before taking actions")
		}
		return c.degraded(req.Tool, err)
	}
	if cur.Terminal() {
		return denied("session.terminal", "session has ended; no further actions are permitted")
	}

	// Iteration cap: independent of the failure breaker.
	if cur.Iteration >= c.cfg.MaxIterations {
		d := denied("guard.iteration_cap",
			fmt.Sprintf("maximum iterations reached (%d); stop starting new work and bring the session to a terminal phase", c.cfg.MaxIterations))
		c.logEvent(ctx, &event.Event{
			SessionID: cur.ID,
			Type:      event.TypeIterationCapped,
			Category:  event.CategoryGuard,
			Phase:     cur.Phase,
			Iteration: cur.Iteration,
			Message:   d.Reason,
		})
		return d
	}

	iter, err := c.store.BumpIteration(ctx, cur.ID)
	if err != nil {
		return c.degraded(req.Tool, err)
	}
	c.logEvent(ctx, &event.Event{
		SessionID: cur.ID,
		Type:      event.TypeToolCalled,
		Category:  event.CategoryAction,
		Phase:     cur.Phase,
		Agent:     cur.Agent,
		Model:     cur.Model,
		Iteration: iter,
		Message:   fmt.Sprintf("tool %s invoked", req.Tool),
	})
	return allowed(fmt.Sprintf("action permitted (iteration %d of %d)", iter, c.cfg.MaxIterations))
}

// AfterAction classifies an action's result, updates the failure counter and
// emits an escalation signal when the circuit breaker trips.
func (c *Controller) AfterAction(ctx context.Context, res ActionResult) Outcome {
	failed, code := ruleset.ClassifyResult(res.Output)

	cur, err := c.resolveSession(ctx)
	if err != nil {
		d := c.degraded("", err)
		d.Allow = true // classification is read-only; never block on a dead store
		return Outcome{Decision: d, Failed: failed}
	}

	if err := c.store.AddUsage(ctx, cur.ID, res.TokensIn, res.TokensOut, res.CostUSD); err != nil {
		c.log.Warn("usage accumulation failed", "error", err)
	}

	status := "success"
	if failed {
		status = "failure"
	}
	c.logEvent(ctx, &event.Event{
		SessionID: cur.ID,
		Type:      event.TypeActionResult,
		Category:  event.CategoryAction,
		Phase:     cur.Phase,
		Model:     cur.Model,
		Iteration: cur.Iteration,
		Status:    status,
		Message:   code,
		TokensIn:  res.TokensIn,
		TokensOut: res.TokensOut,
		CostUSD:   res.CostUSD,
	})

	if !failed {
		// Success resets the counter but never the tier: de-escalation only
		// happens at session start.
		if err := c.store.ResetFailures(ctx, cur.ID); err != nil {
			c.log.Warn("failure counter reset failed", "error", err)
		}
		return Outcome{Decision: allowed("action succeeded"), Failures: 0}
	}

	failures, err := c.store.IncrementFailures(ctx, cur.ID)
	if err != nil {
		c.log.Warn("failure counter increment failed", "error", err)
		return Outcome{Decision: allowed("action failed; counter unavailable"), Failed: true}
	}

	if failures < c.cfg.MaxConsecutiveFailures {
		return Outcome{
			Decision: allowed(fmt.Sprintf("action failed (%d of %d before escalation)", failures, c.cfg.MaxConsecutiveFailures)),
			Failed:   true,
			Failures: failures,
		}
	}

	// Circuit breaker tripped: escalate, never silently retry at this tier.
	next := c.escalate(ctx, cur, fmt.Sprintf("%d consecutive failures", failures))
	d := denied("guard.breaker_tripped",
		fmt.Sprintf("circuit breaker tripped after %d consecutive failures; continue at tier %q, do not retry the same approach", failures, next))
	c.logEvent(ctx, &event.Event{
		SessionID: cur.ID,
		Type:      event.TypeBreakerTripped,
		Category:  event.CategoryGuard,
		Phase:     cur.Phase,
		Model:     next,
		Iteration: cur.Iteration,
		Message:   d.Reason,
	})
	if err := c.store.ResetFailures(ctx, cur.ID); err != nil {
		c.log.Warn("failure counter reset after trip failed", "error", err)
	}
	return Outcome{Decision: d, Failed: true, Failures: failures, Tripped: true, EscalatedTo: next}
}

// BeforeExit gates a voluntary exit. Outside autonomous mode every exit is
// sanctioned; in autonomous mode the final output must carry a recognized
// completion marker or the exit is blocked with injected guidance.
func (c *Controller) BeforeExit(ctx context.Context, finalText string) Decision {
	cur, err := c.resolveSession(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return allowed("no running session; nothing to gate")
		}
		// Exit is not destructive; degrade to allow but say so.
		c.log.Warn("exit gate degraded: store unavailable", "error", err)
		return allowed("store unavailable; exit gate degraded to allow")
	}

	if cur.Mode != session.ModeAutonomous {
		c.checkpoint(ctx, "exit in normal mode")
		return allowed("normal mode; exit is not gated")
	}

	if ruleset.HasCompletionMarker(finalText) {
		c.checkpoint(ctx, "sanctioned autonomous exit")
		c.logEvent(ctx, &event.Event{
			SessionID: cur.ID,
			Type:      event.TypeExitAllowed,
			Category:  event.CategoryGuard,
			Phase:     cur.Phase,
			Iteration: cur.Iteration,
			Message:   "completion marker present; exit sanctioned",
		})
		return allowed("completion marker present; exit sanctioned")
	}

	if rule := ruleset.MatchAbandon(finalText); rule != nil {
		d := c.reengage(ctx, cur, rule)
		c.recordExitBlocked(ctx, cur, d)
		return d
	}

	d := denied("guard.exit_blocked",
		"autonomous mode: output carries no accepted completion marker; keep working, then emit the marker when every task is verified complete")
	c.recordExitBlocked(ctx, cur, d)
	return d
}

// TextProduced screens output text for abandonment phrasing and applies the
// escalating re-engagement ladder. A detected abandonment is always denied;
// the response escalates but never downgrades to allow.
func (c *Controller) TextProduced(ctx context.Context, text string) Decision {
	rule := ruleset.MatchAbandon(text)
	if rule == nil {
		return allowed("no abandonment phrasing detected")
	}

	cur, err := c.resolveSession(ctx)
	if err != nil {
		// Still deny: blocking a handoff needs no store.
		c.log.Warn("abandonment screen degraded: store unavailable", "error", err)
		return denied(rule.Code, reengageMessage(1, rule, ""))
	}

	return c.reengage(ctx, cur, rule)
}

// reengage applies the escalating re-engagement response for one
// abandonment occurrence. Each call counts the occurrence exactly once.
func (c *Controller) reengage(ctx context.Context, cur *session.Session, rule *ruleset.AbandonRule) Decision {
	count, err := c.store.BumpAbandon(ctx, cur.ID)
	if err != nil {
		c.log.Warn("abandon counter increment failed", "error", err)
		count = 1
	}

	var escalatedTo string
	if count == 3 {
		// Third strike goes straight to the top of the ladder.
		escalatedTo = c.escalateTo(ctx, cur, c.ladder.Strongest(), "repeated abandonment attempts")
	}
	if count >= 4 {
		c.logEvent(ctx, &event.Event{
			SessionID: cur.ID,
			Type:      event.TypeHumanNotice,
			Category:  event.CategoryGuard,
			Phase:     cur.Phase,
			Iteration: cur.Iteration,
			Status:    rule.Code,
			Message:   fmt.Sprintf("agent attempted to disengage %d times; human attention requested", count),
		})
	}

	d := denied(rule.Code, reengageMessage(count, rule, escalatedTo))
	c.logEvent(ctx, &event.Event{
		SessionID: cur.ID,
		Type:      event.TypeAbandonDetected,
		Category:  event.CategoryGuard,
		Phase:     cur.Phase,
		Iteration: cur.Iteration,
		Status:    rule.Code,
		Message:   fmt.Sprintf("abandonment occurrence %d (%s)", count, rule.Kind),
	})
	return d
}

// reengageMessage renders the re-engagement guidance for the nth occurrence.
func reengageMessage(count int, rule *ruleset.AbandonRule, escalatedTo string) string {
	switch {
	case count <= 1:
		return fmt.Sprintf("detected %s (%s). The session is not finished; pick the most promising open item and continue working.",
			rule.Kind, rule.Reason)
	case count == 2:
		return strings.Join([]string{
			fmt.Sprintf("detected %s again (%s). Do not hand the problem back.", rule.Kind, rule.Reason),
			"Try a different angle: re-read the failing output end to end, add targeted logging or a minimal reproduction,",
			"bisect recent changes, or question the assumption you are most confident about.",
		}, " ")
	case count == 3:
		return fmt.Sprintf("third disengagement attempt. Escalated to tier %q: request a multi-perspective diagnosis of the blocker and act on its findings.", escalatedTo)
	default:
		return fmt.Sprintf("disengagement attempt %d remains blocked and a human-visible notice has been raised. Keep working the problem.", count)
	}
}

// escalate moves the session one rung up the ladder. Returns the tier now in
// effect.
func (c *Controller) escalate(ctx context.Context, cur *session.Session, why string) string {
	return c.escalateTo(ctx, cur, c.ladder.Next(cur.Model), why)
}

// escalateTo moves the session to the given tier, never down.
func (c *Controller) escalateTo(ctx context.Context, cur *session.Session, next, why string) string {
	if next == cur.Model || c.ladder.AtOrAbove(cur.Model, next) {
		return cur.Model
	}
	if err := c.store.SetModel(ctx, cur.ID, next); err != nil {
		c.log.Warn("tier escalation failed", "error", err)
		return cur.Model
	}
	c.logEvent(ctx, &event.Event{
		SessionID: cur.ID,
		Type:      event.TypeEscalated,
		Category:  event.CategoryGuard,
		Phase:     cur.Phase,
		Model:     next,
		Iteration: cur.Iteration,
		Message:   fmt.Sprintf("escalated %s -> %s: %s", cur.Model, next, why),
	})
	if next == escalation.Council {
		if err := c.store.SetPhase(ctx, cur.ID, session.PhaseBugCouncil); err != nil {
			c.log.Warn("bug council phase transition failed", "error", err)
		}
	}
	return next
}

// resolveSession reads the current session through the availability breaker.
func (c *Controller) resolveSession(ctx context.Context) (*session.Session, error) {
	var cur *session.Session
	err := c.breaker.Execute(func() error {
		var err error
		cur, err = c.store.CurrentSession(ctx)
		if errors.Is(err, domain.ErrNotFound) {
			// Absence is an answer, not a store failure.
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, fmt.Errorf("no running session: %w", domain.ErrNotFound)
	}
	return cur, nil
}

// degraded renders the store-unavailable policy: allow read-only tools, deny
// everything else, and log the degradation. It must never panic the guard.
func (c *Controller) degraded(tool string, cause error) Decision {
	c.log.Warn("guard degraded: store unavailable", "tool", tool, "error", cause)
	if readOnlyTools[tool] {
		return allowed("store unavailable; read-only action permitted in degraded mode")
	}
	return denied("store.degraded",
		"store unavailable; only read-only actions are permitted until the session store is reachable again")
}

// checkpoint writes a best-effort recovery marker.
func (c *Controller) checkpoint(ctx context.Context, message string) {
	if err := c.store.SaveCheckpoint(ctx, message); err != nil {
		c.log.Warn("checkpoint failed", "error", err)
	}
}

// logEvent appends an audit event, logging (not failing) on error: the audit
// trail must not take the guard down with it.
func (c *Controller) logEvent(ctx context.Context, ev *event.Event) {
	if err := c.store.LogEvent(ctx, ev); err != nil {
		c.log.Warn("event append failed", "type", string(ev.Type), "error", err)
	}
}

// recordGuardEvent attaches a guard verdict to the current session when one
// can be resolved; verdicts remain valid without a session.
func (c *Controller) recordGuardEvent(ctx context.Context, typ event.Type, d Decision, tool string) {
	cur, err := c.resolveSession(ctx)
	if err != nil {
		return
	}
	c.logEvent(ctx, &event.Event{
		SessionID: cur.ID,
		Type:      typ,
		Category:  event.CategoryGuard,
		Phase:     cur.Phase,
		Iteration: cur.Iteration,
		Status:    d.Code,
		Message:   fmt.Sprintf("tool %s denied: %s", tool, d.Reason),
	})
}

func (c *Controller) recordExitBlocked(ctx context.Context, cur *session.Session, d Decision) {
	c.logEvent(ctx, &event.Event{
		SessionID: cur.ID,
		Type:      event.TypeExitBlocked,
		Category:  event.CategoryGuard,
		Phase:     cur.Phase,
		Iteration: cur.Iteration,
		Status:    d.Code,
		Message:   d.Reason,
	})
}
