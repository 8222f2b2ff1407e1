// session.go implements the "loopwarden session" lifecycle commands.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/loopwarden/loopwarden/internal/domain/session"
	"github.com/loopwarden/loopwarden/internal/logger"
)

var (
	startCommand string
	startKind    string
	startAgent   string
	startMode    string
	startPlan    string
	startForce   bool

	endStatus string
	endReason string
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage the tracked execution session",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new session",
	Long: `Start a new tracked session in running status. Fails if another
session is still running unless --force terminates the stale one.`,
	RunE: runSessionStart,
}

var sessionEndCmd = &cobra.Command{
	Use:   "end",
	Short: "Terminate the running session",
	RunE:  runSessionEnd,
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running session",
	RunE:  runSessionStatus,
}

func init() {
	sessionStartCmd.Flags().StringVar(&startCommand, "command", "", "command this session executes (required)")
	sessionStartCmd.Flags().StringVar(&startKind, "kind", "", "command kind, e.g. feature, bugfix")
	sessionStartCmd.Flags().StringVar(&startAgent, "agent", "", "agent name")
	sessionStartCmd.Flags().StringVar(&startMode, "mode", "", "execution mode: normal or autonomous")
	sessionStartCmd.Flags().StringVar(&startPlan, "plan", "", "plan identifier linkage")
	sessionStartCmd.Flags().BoolVar(&startForce, "force", false, "force-terminate a stale running session first")
	_ = sessionStartCmd.MarkFlagRequired("command")

	sessionEndCmd.Flags().StringVar(&endStatus, "status", string(session.StatusCompleted), "terminal status: completed, aborted or failed")
	sessionEndCmd.Flags().StringVar(&endReason, "reason", "", "exit reason")

	sessionCmd.AddCommand(sessionStartCmd, sessionEndCmd, sessionStatusCmd)
}

func runSessionStart(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	sess, err := app.controller.StartSession(cmd.Context(), session.StartRequest{
		Command: startCommand,
		Kind:    startKind,
		Agent:   startAgent,
		Mode:    session.Mode(startMode),
		PlanID:  startPlan,
	}, startForce)
	if err != nil {
		return err
	}
	app.log.InfoContext(logger.WithSessionID(cmd.Context(), sess.ID),
		"session started", "mode", string(sess.Mode))
	return emit(sess, true)
}

func runSessionEnd(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	cur, err := app.store.CurrentSession(cmd.Context())
	if err != nil {
		return err
	}
	ctx := logger.WithSessionID(cmd.Context(), cur.ID)
	if err := app.controller.EndSession(ctx, session.Status(endStatus), endReason); err != nil {
		return err
	}
	app.log.InfoContext(ctx, "session ended", "status", endStatus)
	return nil
}

func runSessionStatus(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	sess, err := app.store.CurrentSession(cmd.Context())
	if err != nil {
		return err
	}
	return emit(sess, true)
}
