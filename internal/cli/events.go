// events.go implements audit-trail inspection commands.
package cli

import (
	"github.com/spf13/cobra"
)

var eventsSession string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the append-only audit trail",
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a session's events in the order they were observed",
	RunE:  runEventsList,
}

func init() {
	eventsListCmd.Flags().StringVar(&eventsSession, "session", "", "session id (default: the running session)")
	eventsCmd.AddCommand(eventsListCmd)
}

func runEventsList(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	id := eventsSession
	if id == "" {
		cur, err := app.store.CurrentSession(cmd.Context())
		if err != nil {
			return err
		}
		id = cur.ID
	}

	events, err := app.store.ListEvents(cmd.Context(), id)
	if err != nil {
		return err
	}
	return emit(events, true)
}
