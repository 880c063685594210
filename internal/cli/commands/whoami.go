package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/session"
)

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current user and permissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *App) error {
				if err := app.requireSession(cmd.Context()); err != nil {
					return err
				}
				printSession(cmd.OutOrStdout(), app.Store.Snapshot())
				return nil
			})
		},
	}
}

func printSession(out io.Writer, snap session.Session) {
	if snap.User == nil {
		fmt.Fprintln(out, "Not logged in.")
		return
	}

	printUser(out, snap.User)
	fmt.Fprintf(out, "  State: %s\n", snap.State)

	switch {
	case snap.Permissions == nil:
		fmt.Fprintln(out, "  Permissions: (not loaded)")
	case len(snap.Permissions) == 0:
		fmt.Fprintln(out, "  Permissions: none")
	default:
		fmt.Fprintf(out, "  Permissions: %s\n", strings.Join(snap.Permissions, ", "))
	}

	if !snap.LastSyncedAt.IsZero() {
		fmt.Fprintf(out, "  Synced: %s\n", snap.LastSyncedAt.Format(time.RFC3339))
	}
}
