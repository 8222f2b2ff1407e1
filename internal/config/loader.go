package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = ".loopwarden/config.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Store.Path, "LOOPWARDEN_DB_PATH")
	setDuration(&cfg.Store.BusyTimeout, "LOOPWARDEN_DB_BUSY_TIMEOUT")
	setString(&cfg.Logging.Level, "LOOPWARDEN_LOG_LEVEL")
	setString(&cfg.Logging.Service, "LOOPWARDEN_LOG_SERVICE")
	setInt(&cfg.Guard.MaxIterations, "LOOPWARDEN_MAX_ITERATIONS")
	setInt(&cfg.Guard.MaxConsecutiveFailures, "LOOPWARDEN_MAX_CONSECUTIVE_FAILURES")
	setBool(&cfg.Guard.AutonomousMode, "LOOPWARDEN_AUTONOMOUS")
	setStringSlice(&cfg.Escalation.Ladder, "LOOPWARDEN_LADDER")
	setString(&cfg.Scope.PolicyFile, "LOOPWARDEN_SCOPE_POLICY")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Store.Path == "" {
		return errors.New("store.path is required")
	}
	if cfg.Store.BusyTimeout < 0 {
		return errors.New("store.busy_timeout must be >= 0")
	}
	if cfg.Guard.MaxIterations < 1 {
		return errors.New("guard.max_iterations must be >= 1")
	}
	if cfg.Guard.MaxConsecutiveFailures < 1 {
		return errors.New("guard.max_consecutive_failures must be >= 1")
	}
	if len(cfg.Escalation.Ladder) == 0 {
		return errors.New("escalation.ladder must have at least one tier")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			*dst = out
		}
	}
}
