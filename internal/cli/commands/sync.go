package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSyncCmd creates the sync command
func NewSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Refresh the permission snapshot from the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *App) error {
				if err := app.requireSession(cmd.Context()); err != nil {
					return err
				}
				return runSync(cmd, app)
			})
		},
	}
}

func runSync(cmd *cobra.Command, app *App) error {
	// Supersedes the delayed check Boot may have scheduled
	changed, err := app.Sync.SyncNow(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if changed {
		fmt.Fprintln(out, "✓ Permissions updated")
	} else {
		fmt.Fprintln(out, "✓ Permissions already up to date")
	}
	printSession(out, app.Store.Snapshot())
	return nil
}
