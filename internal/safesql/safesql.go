// Package safesql is the only component permitted to construct query text.
// Identifiers (tables, columns) are structural and cannot be escaped safely,
// so they are checked against a static whitelist; data values always travel
// as bound parameters. No other package may format a query string.
package safesql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/loopwarden/loopwarden/internal/domain"
)

// tableColumns is the static identifier whitelist: every table this module
// may touch, and every column of each table. Anything else is rejected.
var tableColumns = map[string]map[string]bool{
	"sessions": {
		"id": true, "created_at": true, "ended_at": true,
		"status": true, "phase": true, "command": true, "kind": true,
		"agent": true, "model": true, "iteration": true,
		"consecutive_failures": true, "abandon_count": true,
		"execution_mode": true, "tokens_in": true, "tokens_out": true,
		"cost_usd": true, "plan_id": true, "sprint_id": true,
		"exit_reason": true,
	},
	"events": {
		"id": true, "session_id": true, "created_at": true,
		"type": true, "category": true, "phase": true, "agent": true,
		"model": true, "iteration": true, "status": true,
		"message": true, "metadata": true,
		"tokens_in": true, "tokens_out": true, "cost_usd": true,
	},
	"session_state": {
		"session_id": true, "key": true, "value": true, "updated_at": true,
	},
	"checkpoints": {
		"id": true, "session_id": true, "message": true, "created_at": true,
	},
}

// ValidateTable checks a table name against the whitelist.
func ValidateTable(name string) error {
	if _, ok := tableColumns[name]; !ok {
		return fmt.Errorf("invalid table %q: %w", name, domain.ErrValidation)
	}
	return nil
}

// ValidateColumn checks a column name against the whitelist for its table.
// "*" is accepted only by Select and never here.
func ValidateColumn(table, column string) error {
	cols, ok := tableColumns[table]
	if !ok {
		return fmt.Errorf("invalid table %q: %w", table, domain.ErrValidation)
	}
	if !cols[column] {
		return fmt.Errorf("invalid column %q for table %q: %w", column, table, domain.ErrValidation)
	}
	return nil
}

// EscapeValue doubles embedded single quotes so a value can appear inside a
// SQL string literal. SQLite string literals have no backslash escapes, so
// quote doubling alone round-trips every value exactly. Used only by Quote;
// normal operations bind values as parameters instead.
func EscapeValue(raw string) string {
	return strings.ReplaceAll(raw, "'", "''")
}

// Quote renders a value as a SQL string literal for the rare raw-statement
// path (Transaction seeds, diagnostics). Never use it for identifiers.
func Quote(raw string) string {
	return "'" + EscapeValue(raw) + "'"
}

// runner abstracts *sql.DB and *sql.Tx so the same validated builders serve
// both single statements and transactions.
type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a database handle with the validated statement builders.
type DB struct {
	ops
	db *sql.DB
}

// Tx exposes the same validated builders inside a transaction.
type Tx struct {
	ops
}

// New wraps an open database handle.
func New(db *sql.DB) *DB {
	return &DB{ops: ops{r: db}, db: db}
}

// Transaction runs fn inside BEGIN/COMMIT, rolling back on any failure so
// multi-step state transitions are atomic.
func (d *DB) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(&Tx{ops: ops{r: sqlTx}}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Set pairs a column with its new value for multi-column updates.
type Set struct {
	Column string
	Value  any
}

// Cond is one equality condition of a WHERE clause. Condition columns are
// validated exactly like SET columns.
type Cond struct {
	Column string
	Value  any
}

// ops holds the validated statement builders shared by DB and Tx.
type ops struct {
	r runner
}

// Insert validates the table and every column, then issues a single INSERT
// with all values bound as parameters. Fails closed: any invalid column
// aborts before any SQL is built.
func (o ops) Insert(ctx context.Context, table string, columns []string, values []any) error {
	if err := ValidateTable(table); err != nil {
		return err
	}
	if len(columns) == 0 || len(columns) != len(values) {
		return fmt.Errorf("insert %s: %d columns, %d values: %w", table, len(columns), len(values), domain.ErrValidation)
	}
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		if err := ValidateColumn(table, col); err != nil {
			return err
		}
		placeholders[i] = "?"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	if _, err := o.r.ExecContext(ctx, query, values...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// Update sets a single column on the rows matching the WHERE clause. The
// WHERE column is validated exactly like the SET column.
func (o ops) Update(ctx context.Context, table, setColumn string, setValue any, whereColumn string, whereValue any) (int64, error) {
	return o.UpdateMany(ctx, table, whereColumn, whereValue, []Set{{Column: setColumn, Value: setValue}})
}

// UpdateMany sets several columns in one UPDATE. Every column name,
// including the WHERE column, is checked before any SQL is built.
func (o ops) UpdateMany(ctx context.Context, table, whereColumn string, whereValue any, sets []Set) (int64, error) {
	return o.UpdateWhere(ctx, table, sets, []Cond{{Column: whereColumn, Value: whereValue}})
}

// UpdateWhere is the composite-key variant of UpdateMany, for tables keyed
// by more than one column (the session_state bag).
func (o ops) UpdateWhere(ctx context.Context, table string, sets []Set, conds []Cond) (int64, error) {
	if err := ValidateTable(table); err != nil {
		return 0, err
	}
	if len(sets) == 0 {
		return 0, fmt.Errorf("update %s: no columns to set: %w", table, domain.ErrValidation)
	}
	if len(conds) == 0 {
		return 0, fmt.Errorf("update %s: no conditions: %w", table, domain.ErrValidation)
	}
	assigns := make([]string, len(sets))
	args := make([]any, 0, len(sets)+len(conds))
	for i, s := range sets {
		if err := ValidateColumn(table, s.Column); err != nil {
			return 0, err
		}
		assigns[i] = s.Column + " = ?"
		args = append(args, s.Value)
	}
	wheres := make([]string, len(conds))
	for i, c := range conds {
		if err := ValidateColumn(table, c.Column); err != nil {
			return 0, err
		}
		wheres[i] = c.Column + " = ?"
		args = append(args, c.Value)
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		table, strings.Join(assigns, ", "), strings.Join(wheres, " AND "))
	res, err := o.r.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update %s: rows affected: %w", table, err)
	}
	return n, nil
}

// Increment atomically adds delta to a numeric column, read-modify-write in
// a single statement so concurrent writers to other sessions stay safe.
func (o ops) Increment(ctx context.Context, table, column string, delta int64, whereColumn string, whereValue any) (int64, error) {
	if err := ValidateTable(table); err != nil {
		return 0, err
	}
	if err := ValidateColumn(table, column); err != nil {
		return 0, err
	}
	if err := ValidateColumn(table, whereColumn); err != nil {
		return 0, err
	}
	query := fmt.Sprintf("UPDATE %s SET %s = %s + ? WHERE %s = ?", table, column, column, whereColumn)
	res, err := o.r.ExecContext(ctx, query, delta, whereValue)
	if err != nil {
		return 0, fmt.Errorf("increment %s.%s: %w", table, column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("increment %s.%s: rows affected: %w", table, column, err)
	}
	return n, nil
}

// Query describes the optional ordering and limit of a Select.
type Query struct {
	OrderBy string // column name, validated; empty for no ordering
	Desc    bool
	Limit   int // 0 for no limit
}

// Select validates identifiers and returns the matching rows. columns may be
// the single sentinel "*" to select all columns, which bypasses per-column
// validation only for that sentinel. An empty whereColumn selects all rows.
func (o ops) Select(ctx context.Context, columns []string, table, whereColumn string, whereValue any, q Query) (*sql.Rows, error) {
	var conds []Cond
	if whereColumn != "" {
		conds = []Cond{{Column: whereColumn, Value: whereValue}}
	}
	return o.SelectWhere(ctx, columns, table, conds, q)
}

// SelectWhere is the composite-key variant of Select.
func (o ops) SelectWhere(ctx context.Context, columns []string, table string, conds []Cond, q Query) (*sql.Rows, error) {
	if err := ValidateTable(table); err != nil {
		return nil, err
	}
	colList := "*"
	if !(len(columns) == 1 && columns[0] == "*") {
		if len(columns) == 0 {
			return nil, fmt.Errorf("select %s: no columns: %w", table, domain.ErrValidation)
		}
		for _, col := range columns {
			if err := ValidateColumn(table, col); err != nil {
				return nil, err
			}
		}
		colList = strings.Join(columns, ", ")
	}

	var sb strings.Builder
	args := []any{}
	fmt.Fprintf(&sb, "SELECT %s FROM %s", colList, table)
	if len(conds) > 0 {
		wheres := make([]string, len(conds))
		for i, c := range conds {
			if err := ValidateColumn(table, c.Column); err != nil {
				return nil, err
			}
			wheres[i] = c.Column + " = ?"
			args = append(args, c.Value)
		}
		fmt.Fprintf(&sb, " WHERE %s", strings.Join(wheres, " AND "))
	}
	if q.OrderBy != "" {
		if err := ValidateColumn(table, q.OrderBy); err != nil {
			return nil, err
		}
		fmt.Fprintf(&sb, " ORDER BY %s", q.OrderBy)
		if q.Desc {
			sb.WriteString(" DESC")
		}
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}

	rows, err := o.r.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return rows, nil
}
