package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/loopwarden/loopwarden/internal/adapter/sqlite"
	"github.com/loopwarden/loopwarden/internal/config"
	"github.com/loopwarden/loopwarden/internal/domain/escalation"
	"github.com/loopwarden/loopwarden/internal/domain/scope"
	"github.com/loopwarden/loopwarden/internal/logger"
	"github.com/loopwarden/loopwarden/internal/resilience"
	"github.com/loopwarden/loopwarden/internal/service"
)

// app bundles everything one invocation needs. Each interception event is a
// fresh process: state lives in the store, never in memory between runs.
type app struct {
	cfg        *config.Config
	log        *slog.Logger
	db         *sql.DB
	store      *sqlite.Store
	controller *service.Controller
}

// newApp loads config, opens and migrates the store, and wires the services.
func newApp(ctx context.Context) (*app, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigFile
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging)

	db, err := sqlite.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	if err := sqlite.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	policy, err := scope.LoadFromFile(cfg.Scope.PolicyFile)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("scope policy: %w", err)
	}

	ladder, err := escalation.NewLadder(cfg.Escalation.Ladder)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("escalation: %w", err)
	}

	st := sqlite.NewStore(db)
	guard := service.NewGuard(policy, log)
	breaker := resilience.NewBreaker(3, 30*time.Second)
	controller := service.NewController(st, guard, ladder, cfg.Guard, breaker, log)

	return &app{cfg: cfg, log: log, db: db, store: st, controller: controller}, nil
}

func (a *app) close() {
	_ = a.db.Close()
}

// emit prints a verdict as JSON on stdout and maps a denial to ErrDenied so
// the process exit code reflects it.
func emit(v any, allow bool) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode verdict: %w", err)
	}
	if !allow {
		return ErrDenied
	}
	return nil
}

// readText returns the flag value when set, otherwise the whole of stdin.
// Hook payloads arrive on stdin by convention.
func readText(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
