package safesql

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/loopwarden/loopwarden/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	raw, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = raw.Close() })

	// Minimal schema matching the whitelist.
	_, err = raw.Exec(`
		CREATE TABLE sessions (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL DEFAULT '',
			ended_at TEXT,
			status TEXT NOT NULL DEFAULT 'running',
			phase TEXT NOT NULL DEFAULT 'initializing',
			command TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL DEFAULT '',
			agent TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			iteration INTEGER NOT NULL DEFAULT 0,
			consecutive_failures INTEGER NOT NULL DEFAULT 0,
			abandon_count INTEGER NOT NULL DEFAULT 0,
			execution_mode TEXT NOT NULL DEFAULT 'normal',
			tokens_in INTEGER NOT NULL DEFAULT 0,
			tokens_out INTEGER NOT NULL DEFAULT 0,
			cost_usd REAL NOT NULL DEFAULT 0,
			plan_id TEXT NOT NULL DEFAULT '',
			sprint_id TEXT NOT NULL DEFAULT '',
			exit_reason TEXT NOT NULL DEFAULT ''
		)`)
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return New(raw)
}

func TestValidateTableRejectsUnknown(t *testing.T) {
	cases := []string{"users", "sessions; DROP TABLE sessions", "", "Sessions"}
	for _, name := range cases {
		if err := ValidateTable(name); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("ValidateTable(%q) = %v, want ErrValidation", name, err)
		}
	}
	if err := ValidateTable("sessions"); err != nil {
		t.Fatalf("ValidateTable(sessions) = %v", err)
	}
}

func TestValidateColumnRejectsUnknown(t *testing.T) {
	cases := []struct {
		table, column string
	}{
		{"sessions", "password"},
		{"sessions", "id; DROP TABLE sessions"},
		{"sessions", "id'--"},
		{"events", "command"}, // valid column, wrong table
		{"nope", "id"},
	}
	for _, tc := range cases {
		if err := ValidateColumn(tc.table, tc.column); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("ValidateColumn(%q, %q) = %v, want ErrValidation", tc.table, tc.column, err)
		}
	}
	if err := ValidateColumn("sessions", "status"); err != nil {
		t.Fatalf("ValidateColumn(sessions, status) = %v", err)
	}
}

func TestEscapeValue(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"O'Brien", "O''Brien"},
		{"'; DROP TABLE sessions; --", "''; DROP TABLE sessions; --"},
		{`back\slash`, `back\slash`}, // sqlite literals have no backslash escapes
		{"''", "''''"},
	}
	for _, tc := range cases {
		if got := EscapeValue(tc.in); got != tc.want {
			t.Fatalf("EscapeValue(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestInsertFailsClosedOnBadColumn(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := db.Insert(ctx, "sessions",
		[]string{"id", "evil) VALUES ('x'); --"},
		[]any{"s1", "boom"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	// No partial write happened.
	rows, err := db.Select(ctx, []string{"id"}, "sessions", "", nil, Query{})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	defer rows.Close()
	if rows.Next() {
		t.Fatal("expected empty table after rejected insert")
	}
}

func TestValueRoundTripThroughStorage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	hostile := `O'Brien said "rm -rf /" \ '; DROP TABLE sessions; --`
	if err := db.Insert(ctx, "sessions", []string{"id", "command"}, []any{"s1", hostile}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rows, err := db.Select(ctx, []string{"command"}, "sessions", "id", "s1", Query{})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	defer rows.Close()
	if !rows.Next() {
		t.Fatal("row not found")
	}
	var got string
	if err := rows.Scan(&got); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if got != hostile {
		t.Fatalf("round trip mismatch: got %q want %q", got, hostile)
	}
}

func TestQuoteRoundTripThroughStorage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	hostile := `it's a \'"test"`
	if _, err := db.db.ExecContext(ctx,
		"INSERT INTO sessions (id, command) VALUES ('s1', "+Quote(hostile)+")"); err != nil {
		t.Fatalf("insert with quoted literal: %v", err)
	}

	rows, err := db.Select(ctx, []string{"command"}, "sessions", "id", "s1", Query{})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	defer rows.Close()
	if !rows.Next() {
		t.Fatal("row not found")
	}
	var got string
	if err := rows.Scan(&got); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if got != hostile {
		t.Fatalf("round trip mismatch: got %q want %q", got, hostile)
	}
}

func TestUpdateValidatesWhereColumn(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.Update(ctx, "sessions", "status", "failed", "id OR 1=1", "x"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for bad where column, got %v", err)
	}
}

func TestUpdateManyAndSelect(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Insert(ctx, "sessions", []string{"id", "command"}, []any{"s1", "build"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	n, err := db.UpdateMany(ctx, "sessions", "id", "s1", []Set{
		{Column: "status", Value: "completed"},
		{Column: "exit_reason", Value: "done"},
	})
	if err != nil {
		t.Fatalf("update many: %v", err)
	}
	if n != 1 {
		t.Fatalf("rows affected = %d, want 1", n)
	}

	rows, err := db.Select(ctx, []string{"status", "exit_reason"}, "sessions", "id", "s1", Query{})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	defer rows.Close()
	if !rows.Next() {
		t.Fatal("row not found")
	}
	var status, reason string
	if err := rows.Scan(&status, &reason); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if status != "completed" || reason != "done" {
		t.Fatalf("got (%q, %q), want (completed, done)", status, reason)
	}
}

func TestSelectStarSentinel(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Insert(ctx, "sessions", []string{"id"}, []any{"s1"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	rows, err := db.Select(ctx, []string{"*"}, "sessions", "id", "s1", Query{})
	if err != nil {
		t.Fatalf("select *: %v", err)
	}
	defer rows.Close()
	if !rows.Next() {
		t.Fatal("row not found")
	}
}

func TestTransactionRollsBackOnFailure(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.Transaction(ctx, func(tx *Tx) error {
		if err := tx.Insert(ctx, "sessions", []string{"id"}, []any{"s1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	rows, err := db.Select(ctx, []string{"id"}, "sessions", "", nil, Query{})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	defer rows.Close()
	if rows.Next() {
		t.Fatal("expected rollback to remove the inserted row")
	}
}

func TestIncrementIsAtomicPerStatement(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Insert(ctx, "sessions", []string{"id"}, []any{"s1"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := db.Increment(ctx, "sessions", "iteration", 1, "id", "s1"); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	rows, err := db.Select(ctx, []string{"iteration"}, "sessions", "id", "s1", Query{})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	defer rows.Close()
	if !rows.Next() {
		t.Fatal("row not found")
	}
	var iter int
	if err := rows.Scan(&iter); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if iter != 3 {
		t.Fatalf("iteration = %d, want 3", iter)
	}
}
