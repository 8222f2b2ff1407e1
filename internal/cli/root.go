// Package cli defines the Cobra commands for the loopwarden binary. Each
// interception point of the control core is one subcommand, invoked once per
// event by the orchestrating loop.
package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

// ErrDenied is returned by hook commands whose verdict was a denial, so the
// process can exit non-zero and the invoking hook can gate on it.
var ErrDenied = errors.New("denied")

var (
	configPath string
	version    = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "loopwarden",
	Short: "Safety rail for long-running autonomous agent sessions",
	Long: `loopwarden tracks the state of a semi-autonomous agent session in a
local store and enforces safety invariants on it: iteration caps, a
consecutive-failure circuit breaker, file-scope boundaries, destructive
command interception and autonomous-mode exit gating.

The orchestrating loop invokes one subcommand per interception event;
hook commands print a JSON verdict on stdout and exit 0 (allow) or 2 (deny).`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config YAML (default .loopwarden/config.yaml)")

	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(checkpointCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(migrateCmd)
}

// Execute runs the root command and reports whether the verdict, if any,
// was a denial.
func Execute() error {
	return rootCmd.Execute()
}
