// migrate.go implements schema maintenance commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loopwarden/loopwarden/internal/adapter/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `Apply all pending embedded schema migrations to the local store and
print the resulting schema version. Commands that touch the store also
migrate on startup; this exists for explicit provisioning.`,
	RunE: runMigrate,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current schema version",
	RunE:  runMigrateStatus,
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context()) // newApp migrates
	if err != nil {
		return err
	}
	defer app.close()

	version, err := sqlite.SchemaVersion(cmd.Context(), app.db)
	if err != nil {
		return err
	}
	fmt.Printf("schema version %d\n", version)
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	return runMigrate(cmd, args)
}
