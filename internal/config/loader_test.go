package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	return path
}

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Store.Path != ".loopwarden/loopwarden.db" {
		t.Errorf("store.path = %q", cfg.Store.Path)
	}
	if cfg.Store.BusyTimeout != 5*time.Second {
		t.Errorf("store.busy_timeout = %v", cfg.Store.BusyTimeout)
	}
	if cfg.Guard.MaxIterations != 100 {
		t.Errorf("guard.max_iterations = %d", cfg.Guard.MaxIterations)
	}
	if cfg.Guard.MaxConsecutiveFailures != 5 {
		t.Errorf("guard.max_consecutive_failures = %d", cfg.Guard.MaxConsecutiveFailures)
	}
	if cfg.Guard.AutonomousMode {
		t.Error("autonomous_mode should default to false")
	}
	if len(cfg.Escalation.Ladder) != 3 || cfg.Escalation.Ladder[0] != "haiku" {
		t.Errorf("escalation.ladder = %v", cfg.Escalation.Ladder)
	}
}

func TestLoadFromYAMLOverridesDefaults(t *testing.T) {
	path := writeYAML(t, `
store:
  path: /tmp/warden.db
guard:
  max_iterations: 25
  autonomous_mode: true
escalation:
  ladder: [sonnet, opus]
`)
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Store.Path != "/tmp/warden.db" {
		t.Errorf("store.path = %q", cfg.Store.Path)
	}
	if cfg.Guard.MaxIterations != 25 {
		t.Errorf("guard.max_iterations = %d", cfg.Guard.MaxIterations)
	}
	if !cfg.Guard.AutonomousMode {
		t.Error("autonomous_mode not applied from yaml")
	}
	if len(cfg.Escalation.Ladder) != 2 || cfg.Escalation.Ladder[0] != "sonnet" {
		t.Errorf("escalation.ladder = %v", cfg.Escalation.Ladder)
	}
	// Untouched sections keep their defaults.
	if cfg.Guard.MaxConsecutiveFailures != 5 {
		t.Errorf("guard.max_consecutive_failures = %d", cfg.Guard.MaxConsecutiveFailures)
	}
}

func TestLoadFromEnvOverridesYAML(t *testing.T) {
	path := writeYAML(t, `
guard:
  max_iterations: 25
`)
	t.Setenv("LOOPWARDEN_MAX_ITERATIONS", "7")
	t.Setenv("LOOPWARDEN_AUTONOMOUS", "true")
	t.Setenv("LOOPWARDEN_LADDER", "sonnet, opus")
	t.Setenv("LOOPWARDEN_DB_BUSY_TIMEOUT", "250ms")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Guard.MaxIterations != 7 {
		t.Errorf("guard.max_iterations = %d, want env override 7", cfg.Guard.MaxIterations)
	}
	if !cfg.Guard.AutonomousMode {
		t.Error("LOOPWARDEN_AUTONOMOUS not applied")
	}
	if len(cfg.Escalation.Ladder) != 2 || cfg.Escalation.Ladder[1] != "opus" {
		t.Errorf("escalation.ladder = %v", cfg.Escalation.Ladder)
	}
	if cfg.Store.BusyTimeout != 250*time.Millisecond {
		t.Errorf("store.busy_timeout = %v", cfg.Store.BusyTimeout)
	}
}

func TestLoadFromRejectsInvalid(t *testing.T) {
	cases := []struct {
		name, yaml string
	}{
		{"zero iterations", "guard:\n  max_iterations: 0\n"},
		{"zero failures", "guard:\n  max_consecutive_failures: 0\n"},
		{"empty store path", "store:\n  path: \"\"\n"},
		{"empty ladder", "escalation:\n  ladder: []\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadFrom(writeYAML(t, tc.yaml)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadFromRejectsMalformedYAML(t *testing.T) {
	if _, err := LoadFrom(writeYAML(t, "guard: [not a map")); err == nil {
		t.Fatal("expected parse error")
	}
}
