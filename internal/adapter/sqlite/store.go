package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/loopwarden/loopwarden/internal/domain"
	"github.com/loopwarden/loopwarden/internal/domain/event"
	"github.com/loopwarden/loopwarden/internal/domain/session"
	"github.com/loopwarden/loopwarden/internal/safesql"
)

// stateKeyPrefixes are the accepted namespaces for the session_state bag.
// A key must carry one of these prefixes to be written.
var stateKeyPrefixes = []string{"plan.", "sprint.", "track.", "task.", "council.", "resume."}

// stateKeys are the accepted bare keys for the session_state bag.
var stateKeys = map[string]bool{
	"plan_id":      true,
	"sprint_id":    true,
	"active_task":  true,
	"last_tool":    true,
	"quality_gate": true,
	"resume_point": true,
}

// Store implements store.Store on the local SQLite database. Every query is
// routed through the safesql layer; nothing here formats SQL directly.
type Store struct {
	db  *safesql.DB
	now func() time.Time // for testing
}

// NewStore wraps an open, migrated database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: safesql.New(db), now: time.Now}
}

// sessionColumns is the fixed read order for session rows.
var sessionColumns = []string{
	"id", "created_at", "ended_at", "status", "phase", "command", "kind",
	"agent", "model", "iteration", "consecutive_failures", "abandon_count",
	"execution_mode", "tokens_in", "tokens_out", "cost_usd",
	"plan_id", "sprint_id", "exit_reason",
}

// StartSession generates an id and inserts a session row in running status
// with zeroed counters. The unique partial index on status makes a second
// running session a hard conflict.
func (s *Store) StartSession(ctx context.Context, req session.StartRequest) (*session.Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sess := &session.Session{
		ID:        session.NewID(now),
		Command:   req.Command,
		Kind:      req.Kind,
		Status:    session.StatusRunning,
		Phase:     session.PhaseInitializing,
		Agent:     req.Agent,
		Model:     req.Model,
		Mode:      req.Mode,
		PlanID:    req.PlanID,
		CreatedAt: now,
	}
	if sess.Mode == "" {
		sess.Mode = session.ModeNormal
	}

	err := s.db.Transaction(ctx, func(tx *safesql.Tx) error {
		if err := tx.Insert(ctx, "sessions",
			[]string{"id", "created_at", "status", "phase", "command", "kind", "agent", "model", "execution_mode", "plan_id"},
			[]any{sess.ID, stamp(now), string(sess.Status), string(sess.Phase), sess.Command, sess.Kind, sess.Agent, sess.Model, string(sess.Mode), sess.PlanID},
		); err != nil {
			return err
		}
		return appendEvent(ctx, tx, s.now, &event.Event{
			SessionID: sess.ID,
			Type:      event.TypeSessionStarted,
			Category:  event.CategoryLifecycle,
			Phase:     sess.Phase,
			Agent:     sess.Agent,
			Model:     sess.Model,
			Message:   fmt.Sprintf("session started for command %q", sess.Command),
		})
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("a session is already running: %w", domain.ErrConflict)
		}
		return nil, fmt.Errorf("start session: %w", err)
	}
	return sess, nil
}

// EndSession validates the terminal status, stamps ended_at and writes the
// terminal event. The status field is write-once: ending an already-terminal
// session returns domain.ErrTerminal.
func (s *Store) EndSession(ctx context.Context, id string, status session.Status, reason string) error {
	if err := session.ValidTerminalStatus(status); err != nil {
		return err
	}

	return s.db.Transaction(ctx, func(tx *safesql.Tx) error {
		cur, err := getSession(ctx, tx, "id", id)
		if err != nil {
			return err
		}
		if cur.Terminal() {
			return fmt.Errorf("end session %s: %w", id, domain.ErrTerminal)
		}

		n, err := tx.UpdateMany(ctx, "sessions", "id", id, []safesql.Set{
			{Column: "status", Value: string(status)},
			{Column: "phase", Value: string(session.Phase(status))},
			{Column: "ended_at", Value: stamp(s.now().UTC())},
			{Column: "exit_reason", Value: reason},
		})
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("end session %s: %w", id, domain.ErrNotFound)
		}
		return appendEvent(ctx, tx, s.now, &event.Event{
			SessionID: id,
			Type:      event.TypeSessionEnded,
			Category:  event.CategoryLifecycle,
			Phase:     session.Phase(status),
			Status:    string(status),
			Iteration: cur.Iteration,
			Message:   fmt.Sprintf("session ended with status %s: %s", status, reason),
		})
	})
}

// CurrentSession resolves the most recent row with status = running. By
// invariant there is at most one.
func (s *Store) CurrentSession(ctx context.Context) (*session.Session, error) {
	return getSession(ctx, s.db, "status", string(session.StatusRunning))
}

// GetSession returns a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*session.Session, error) {
	return getSession(ctx, s.db, "id", id)
}

// selector is the subset of safesql shared by DB and Tx that getSession needs.
type selector interface {
	Select(ctx context.Context, columns []string, table, whereColumn string, whereValue any, q safesql.Query) (*sql.Rows, error)
}

func getSession(ctx context.Context, from selector, whereColumn, whereValue string) (*session.Session, error) {
	rows, err := from.Select(ctx, sessionColumns, "sessions", whereColumn, whereValue,
		safesql.Query{OrderBy: "created_at", Desc: true, Limit: 1})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get session: %w", err)
		}
		return nil, fmt.Errorf("get session %s=%s: %w", whereColumn, whereValue, domain.ErrNotFound)
	}
	sess, err := scanSession(rows)
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return sess, rows.Err()
}

// GetState reads one key from the session's key/value bag. A missing key is
// domain.ErrNotFound.
func (s *Store) GetState(ctx context.Context, sessionID, key string) (string, error) {
	if err := validateStateKey(key); err != nil {
		return "", err
	}
	rows, err := s.db.SelectWhere(ctx, []string{"value"}, "session_state",
		[]safesql.Cond{{Column: "session_id", Value: sessionID}, {Column: "key", Value: key}},
		safesql.Query{})
	if err != nil {
		return "", err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", fmt.Errorf("get state %s: %w", key, err)
		}
		return "", fmt.Errorf("get state %s: %w", key, domain.ErrNotFound)
	}
	var value string
	if err := rows.Scan(&value); err != nil {
		return "", fmt.Errorf("scan state %s: %w", key, err)
	}
	return value, rows.Err()
}

// SetState writes one key of the session's bag. Update-then-insert inside a
// transaction stands in for upsert so both paths stay on validated builders.
func (s *Store) SetState(ctx context.Context, sessionID, key, value string) error {
	if err := validateStateKey(key); err != nil {
		return err
	}
	return s.db.Transaction(ctx, func(tx *safesql.Tx) error {
		n, err := tx.UpdateWhere(ctx, "session_state",
			[]safesql.Set{{Column: "value", Value: value}, {Column: "updated_at", Value: stamp(s.now().UTC())}},
			[]safesql.Cond{{Column: "session_id", Value: sessionID}, {Column: "key", Value: key}})
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		return tx.Insert(ctx, "session_state",
			[]string{"session_id", "key", "value", "updated_at"},
			[]any{sessionID, key, value, stamp(s.now().UTC())})
	})
}

func validateStateKey(key string) error {
	if stateKeys[key] {
		return nil
	}
	for _, p := range stateKeyPrefixes {
		if strings.HasPrefix(key, p) && len(key) > len(p) {
			return nil
		}
	}
	return fmt.Errorf("state key %q not in allow-list: %w", key, domain.ErrValidation)
}

// LogEvent appends one event to the audit trail.
func (s *Store) LogEvent(ctx context.Context, ev *event.Event) error {
	return appendEvent(ctx, s.db, s.now, ev)
}

// inserter is the subset of safesql shared by DB and Tx that appendEvent needs.
type inserter interface {
	Insert(ctx context.Context, table string, columns []string, values []any) error
}

func appendEvent(ctx context.Context, to inserter, now func() time.Time, ev *event.Event) error {
	metadata := "{}"
	if len(ev.Metadata) > 0 {
		if !json.Valid(ev.Metadata) {
			return fmt.Errorf("event metadata is not valid JSON: %w", domain.ErrValidation)
		}
		metadata = string(ev.Metadata)
	}
	return to.Insert(ctx, "events",
		[]string{"session_id", "created_at", "type", "category", "phase", "agent", "model", "iteration", "status", "message", "metadata", "tokens_in", "tokens_out", "cost_usd"},
		[]any{ev.SessionID, stamp(now().UTC()), string(ev.Type), string(ev.Category), string(ev.Phase), ev.Agent, ev.Model, ev.Iteration, ev.Status, ev.Message, metadata, ev.TokensIn, ev.TokensOut, ev.CostUSD})
}

// ListEvents returns a session's events in insertion order, the source of
// truth for "what happened when".
func (s *Store) ListEvents(ctx context.Context, sessionID string) ([]event.Event, error) {
	rows, err := s.db.Select(ctx, []string{"*"}, "events", "session_id", sessionID,
		safesql.Query{OrderBy: "id"})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// BumpIteration atomically increments the iteration counter and returns the
// new value.
func (s *Store) BumpIteration(ctx context.Context, sessionID string) (int, error) {
	return s.bumpCounter(ctx, sessionID, "iteration")
}

// IncrementFailures atomically increments the consecutive-failure counter
// and returns the new value.
func (s *Store) IncrementFailures(ctx context.Context, sessionID string) (int, error) {
	return s.bumpCounter(ctx, sessionID, "consecutive_failures")
}

// BumpAbandon atomically increments the abandonment-escalation counter and
// returns the new value.
func (s *Store) BumpAbandon(ctx context.Context, sessionID string) (int, error) {
	return s.bumpCounter(ctx, sessionID, "abandon_count")
}

func (s *Store) bumpCounter(ctx context.Context, sessionID, column string) (int, error) {
	var value int
	err := s.db.Transaction(ctx, func(tx *safesql.Tx) error {
		n, err := tx.Increment(ctx, "sessions", column, 1, "id", sessionID)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
		}
		cur, err := getSession(ctx, tx, "id", sessionID)
		if err != nil {
			return err
		}
		switch column {
		case "iteration":
			value = cur.Iteration
		case "consecutive_failures":
			value = cur.ConsecutiveFailures
		case "abandon_count":
			value = cur.AbandonCount
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("bump %s: %w", column, err)
	}
	return value, nil
}

// ResetFailures zeroes the consecutive-failure counter regardless of its
// prior value.
func (s *Store) ResetFailures(ctx context.Context, sessionID string) error {
	n, err := s.db.Update(ctx, "sessions", "consecutive_failures", 0, "id", sessionID)
	if err != nil {
		return fmt.Errorf("reset failures: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("reset failures: session %s: %w", sessionID, domain.ErrNotFound)
	}
	return nil
}

// SetPhase transitions the session's phase, rejecting illegal edges and any
// mutation of a terminal session.
func (s *Store) SetPhase(ctx context.Context, sessionID string, phase session.Phase) error {
	return s.db.Transaction(ctx, func(tx *safesql.Tx) error {
		cur, err := getSession(ctx, tx, "id", sessionID)
		if err != nil {
			return err
		}
		if cur.Terminal() {
			return fmt.Errorf("set phase on %s: %w", sessionID, domain.ErrTerminal)
		}
		if err := session.CheckTransition(cur.Phase, phase); err != nil {
			return err
		}
		if cur.Phase == phase {
			return nil
		}
		if _, err := tx.Update(ctx, "sessions", "phase", string(phase), "id", sessionID); err != nil {
			return err
		}
		return appendEvent(ctx, tx, s.now, &event.Event{
			SessionID: sessionID,
			Type:      event.TypePhaseChanged,
			Category:  event.CategoryLifecycle,
			Phase:     phase,
			Iteration: cur.Iteration,
			Message:   fmt.Sprintf("phase %s -> %s", cur.Phase, phase),
		})
	})
}

// SetModel records the session's current model tier.
func (s *Store) SetModel(ctx context.Context, sessionID, model string) error {
	n, err := s.db.Update(ctx, "sessions", "model", model, "id", sessionID)
	if err != nil {
		return fmt.Errorf("set model: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set model: session %s: %w", sessionID, domain.ErrNotFound)
	}
	return nil
}

// AddUsage accumulates token and cost deltas onto the session.
func (s *Store) AddUsage(ctx context.Context, sessionID string, tokensIn, tokensOut int64, costUSD float64) error {
	if tokensIn == 0 && tokensOut == 0 && costUSD == 0 {
		return nil
	}
	return s.db.Transaction(ctx, func(tx *safesql.Tx) error {
		if tokensIn != 0 {
			if _, err := tx.Increment(ctx, "sessions", "tokens_in", tokensIn, "id", sessionID); err != nil {
				return err
			}
		}
		if tokensOut != 0 {
			if _, err := tx.Increment(ctx, "sessions", "tokens_out", tokensOut, "id", sessionID); err != nil {
				return err
			}
		}
		if costUSD != 0 {
			cur, err := getSession(ctx, tx, "id", sessionID)
			if err != nil {
				return err
			}
			if _, err := tx.Update(ctx, "sessions", "cost_usd", cur.CostUSD+costUSD, "id", sessionID); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveCheckpoint writes a recovery marker for the current session.
// Best-effort: checkpointing must never block the operation it protects, so
// an unresolvable session is swallowed, not fatal.
func (s *Store) SaveCheckpoint(ctx context.Context, message string) error {
	cur, err := s.CurrentSession(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return s.db.Transaction(ctx, func(tx *safesql.Tx) error {
		if err := tx.Insert(ctx, "checkpoints",
			[]string{"session_id", "message", "created_at"},
			[]any{cur.ID, message, stamp(s.now().UTC())}); err != nil {
			return err
		}
		return appendEvent(ctx, tx, s.now, &event.Event{
			SessionID: cur.ID,
			Type:      event.TypeCheckpoint,
			Category:  event.CategoryLifecycle,
			Phase:     cur.Phase,
			Iteration: cur.Iteration,
			Message:   message,
		})
	})
}

// ListCheckpoints returns a session's checkpoints in insertion order.
func (s *Store) ListCheckpoints(ctx context.Context, sessionID string) ([]event.Checkpoint, error) {
	rows, err := s.db.Select(ctx, []string{"id", "session_id", "message", "created_at"},
		"checkpoints", "session_id", sessionID, safesql.Query{OrderBy: "id"})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cps []event.Checkpoint
	for rows.Next() {
		var cp event.Checkpoint
		var createdAt string
		if err := rows.Scan(&cp.ID, &cp.SessionID, &cp.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		cp.CreatedAt = parseStamp(createdAt)
		cps = append(cps, cp)
	}
	return cps, rows.Err()
}

// --- scanning helpers ---

// scanSession reads a row in sessionColumns order. Malformed stored numerics
// read as zero rather than propagating a parse failure into control logic.
func scanSession(rows *sql.Rows) (*session.Session, error) {
	raw := make([]any, len(sessionColumns))
	ptrs := make([]any, len(raw))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	sess := &session.Session{
		ID:                  asString(raw[0]),
		CreatedAt:           parseStamp(asString(raw[1])),
		Status:              session.Status(asString(raw[3])),
		Phase:               session.Phase(asString(raw[4])),
		Command:             asString(raw[5]),
		Kind:                asString(raw[6]),
		Agent:               asString(raw[7]),
		Model:               asString(raw[8]),
		Iteration:           int(asInt64(raw[9])),
		ConsecutiveFailures: int(asInt64(raw[10])),
		AbandonCount:        int(asInt64(raw[11])),
		Mode:                session.Mode(asString(raw[12])),
		TokensIn:            asInt64(raw[13]),
		TokensOut:           asInt64(raw[14]),
		CostUSD:             asFloat64(raw[15]),
		PlanID:              asString(raw[16]),
		SprintID:            asString(raw[17]),
		ExitReason:          asString(raw[18]),
	}
	if ended := asString(raw[2]); ended != "" {
		t := parseStamp(ended)
		sess.EndedAt = &t
	}
	return sess, nil
}

// eventColumns mirrors the events table definition order for "*" selects.
func scanEvent(rows *sql.Rows) (*event.Event, error) {
	var ev event.Event
	raw := make([]any, 15)
	ptrs := make([]any, len(raw))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	ev.ID = asInt64(raw[0])
	ev.SessionID = asString(raw[1])
	ev.CreatedAt = parseStamp(asString(raw[2]))
	ev.Type = event.Type(asString(raw[3]))
	ev.Category = event.Category(asString(raw[4]))
	ev.Phase = session.Phase(asString(raw[5]))
	ev.Agent = asString(raw[6])
	ev.Model = asString(raw[7])
	ev.Iteration = int(asInt64(raw[8]))
	ev.Status = asString(raw[9])
	ev.Message = asString(raw[10])
	ev.Metadata = json.RawMessage(asString(raw[11]))
	ev.TokensIn = asInt64(raw[12])
	ev.TokensOut = asInt64(raw[13])
	ev.CostUSD = asFloat64(raw[14])
	return &ev, nil
}

const stampLayout = time.RFC3339Nano

func stamp(t time.Time) string { return t.Format(stampLayout) }

func parseStamp(s string) time.Time {
	t, err := time.Parse(stampLayout, s)
	if err != nil {
		// sqlite's strftime default lacks the T-less variant; try it.
		if t, err = time.Parse("2006-01-02 15:04:05.999999999", s); err != nil {
			return time.Time{}
		}
	}
	return t.UTC()
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func asInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case float64:
		return int64(x)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0
		}
		return n
	case []byte:
		return asInt64(string(x))
	default:
		return 0
	}
}

func asFloat64(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return f
	case []byte:
		return asFloat64(string(x))
	default:
		return 0
	}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
