// Package config provides hierarchical configuration loading for loopwarden.
// Precedence: defaults < YAML file < environment variables. Configuration is
// read once at process start and treated as immutable for that invocation.
package config

import "time"

// Config holds all runtime configuration for the control core.
type Config struct {
	Store      Store      `yaml:"store"`
	Logging    Logging    `yaml:"logging"`
	Guard      Guard      `yaml:"guard"`
	Escalation Escalation `yaml:"escalation"`
	Scope      Scope      `yaml:"scope"`
}

// Store holds local SQLite store configuration.
type Store struct {
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// Guard holds the controller's safety thresholds.
type Guard struct {
	MaxIterations          int  `yaml:"max_iterations"`           // iteration cap per session (default: 100)
	MaxConsecutiveFailures int  `yaml:"max_consecutive_failures"` // circuit breaker threshold (default: 5)
	AutonomousMode         bool `yaml:"autonomous_mode"`          // exit gating on/off
}

// Escalation holds the model tier ladder, weakest first.
type Escalation struct {
	Ladder []string `yaml:"ladder"`
}

// Scope holds the file-scope policy artifact location.
type Scope struct {
	PolicyFile string `yaml:"policy_file"`
}

// Defaults returns a Config with sensible default values for local use.
func Defaults() Config {
	return Config{
		Store: Store{
			Path:        ".loopwarden/loopwarden.db",
			BusyTimeout: 5 * time.Second,
		},
		Logging: Logging{
			Level:   "info",
			Service: "loopwarden",
		},
		Guard: Guard{
			MaxIterations:          100,
			MaxConsecutiveFailures: 5,
			AutonomousMode:         false,
		},
		Escalation: Escalation{
			Ladder: []string{"haiku", "sonnet", "opus"},
		},
		Scope: Scope{
			PolicyFile: ".loopwarden/scope.yaml",
		},
	}
}
