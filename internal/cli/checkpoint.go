// checkpoint.go implements recovery-marker commands.
package cli

import (
	"github.com/spf13/cobra"
)

var checkpointMessage string

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Write a recovery marker before a risky step",
}

var checkpointSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save a checkpoint for the running session",
	Long: `Save a named marker in the session's event stream, written before a
sanctioned exit or a destructive operation. Best-effort: saving never blocks
the operation it protects.`,
	RunE: runCheckpointSave,
}

func init() {
	checkpointSaveCmd.Flags().StringVarP(&checkpointMessage, "message", "m", "", "checkpoint message (required)")
	_ = checkpointSaveCmd.MarkFlagRequired("message")
	checkpointCmd.AddCommand(checkpointSaveCmd)
}

func runCheckpointSave(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	return app.store.SaveCheckpoint(cmd.Context(), checkpointMessage)
}
