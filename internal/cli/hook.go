// hook.go implements the interception-event commands the orchestrating loop
// invokes: before-action, after-action, before-exit and text-produced.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/loopwarden/loopwarden/internal/service"
)

var (
	hookTool      string
	hookPath      string
	hookCommand   string
	hookText      string
	hookTokensIn  int64
	hookTokensOut int64
	hookCostUSD   float64
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Interception-event verdicts for the orchestrating loop",
	Long: `Each subcommand evaluates one interception event and prints a JSON
verdict on stdout. Exit code 0 means allow; 2 means deny, with the reason in
the verdict for injection back into the ongoing work.`,
}

var beforeActionCmd = &cobra.Command{
	Use:   "before-action",
	Short: "Gate a proposed file/command action",
	RunE:  runBeforeAction,
}

var afterActionCmd = &cobra.Command{
	Use:   "after-action",
	Short: "Classify an action result and update counters",
	RunE:  runAfterAction,
}

var beforeExitCmd = &cobra.Command{
	Use:   "before-exit",
	Short: "Gate a voluntary session exit",
	RunE:  runBeforeExit,
}

var textProducedCmd = &cobra.Command{
	Use:   "text-produced",
	Short: "Screen output text for abandonment phrasing",
	RunE:  runTextProduced,
}

func init() {
	beforeActionCmd.Flags().StringVar(&hookTool, "tool", "", "tool the caller wants to run (required)")
	beforeActionCmd.Flags().StringVar(&hookPath, "path", "", "file path the action targets")
	beforeActionCmd.Flags().StringVar(&hookCommand, "command", "", "shell command the action would execute")
	_ = beforeActionCmd.MarkFlagRequired("tool")

	afterActionCmd.Flags().StringVar(&hookText, "output", "", "action result text (default: stdin)")
	afterActionCmd.Flags().Int64Var(&hookTokensIn, "tokens-in", 0, "input token delta")
	afterActionCmd.Flags().Int64Var(&hookTokensOut, "tokens-out", 0, "output token delta")
	afterActionCmd.Flags().Float64Var(&hookCostUSD, "cost", 0, "cost delta in USD")

	beforeExitCmd.Flags().StringVar(&hookText, "output", "", "the caller's final output text (default: stdin)")
	textProducedCmd.Flags().StringVar(&hookText, "output", "", "the produced text (default: stdin)")

	hookCmd.AddCommand(beforeActionCmd, afterActionCmd, beforeExitCmd, textProducedCmd)
}

func runBeforeAction(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	d := app.controller.BeforeAction(cmd.Context(), service.ActionRequest{
		Tool:    hookTool,
		Path:    hookPath,
		Command: hookCommand,
	})
	return emit(d, d.Allow)
}

func runAfterAction(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	output, err := readText(hookText)
	if err != nil {
		return err
	}
	out := app.controller.AfterAction(cmd.Context(), service.ActionResult{
		Output:    output,
		TokensIn:  hookTokensIn,
		TokensOut: hookTokensOut,
		CostUSD:   hookCostUSD,
	})
	return emit(out, out.Allow)
}

func runBeforeExit(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	text, err := readText(hookText)
	if err != nil {
		return err
	}
	d := app.controller.BeforeExit(cmd.Context(), text)
	return emit(d, d.Allow)
}

func runTextProduced(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	text, err := readText(hookText)
	if err != nil {
		return err
	}
	d := app.controller.TextProduced(cmd.Context(), text)
	return emit(d, d.Allow)
}
