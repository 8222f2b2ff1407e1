// state.go implements the per-session key/value bag commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Read and write the running session's key/value bag",
	Long: `The state bag holds small cross-invocation values for the running
session (plan linkage, resume points, quality-gate markers). Keys must come
from the allow-listed names or namespaces.`,
}

var stateGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one value from the running session's bag",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateGet,
}

var stateSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write one value into the running session's bag",
	Args:  cobra.ExactArgs(2),
	RunE:  runStateSet,
}

func init() {
	stateCmd.AddCommand(stateGetCmd, stateSetCmd)
}

func runStateGet(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	cur, err := app.store.CurrentSession(cmd.Context())
	if err != nil {
		return err
	}
	value, err := app.store.GetState(cmd.Context(), cur.ID, args[0])
	if err != nil {
		return err
	}
	fmt.Println(value)
	return nil
}

func runStateSet(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	cur, err := app.store.CurrentSession(cmd.Context())
	if err != nil {
		return err
	}
	return app.store.SetState(cmd.Context(), cur.ID, args[0], args[1])
}
