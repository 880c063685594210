package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/cli/userconfig"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/session"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token and cached store data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *App) error {
				return runLogout(cmd, app)
			})
		},
	}
}

func runLogout(cmd *cobra.Command, app *App) error {
	// A rejected or unreachable session still gets wiped below
	if err := app.Manager.Boot(cmd.Context()); err != nil {
		app.Logger.Debug().Err(err).Msg("Session restore failed before logout")
	}
	return logout(app, cmd.OutOrStdout())
}

func logout(app *App, out io.Writer) error {
	app.Manager.OnLogout(func(prev session.Session) {
		if err := userconfig.SetSelectedStore(""); err != nil {
			app.Logger.Warn().Err(err).Msg("Failed to clear selected store")
		}
		if prev.User != nil {
			fmt.Fprintf(out, "✓ Logged out %s\n", prev.User.Email)
		} else {
			fmt.Fprintln(out, "✓ Logged out")
		}
	})

	if err := app.Manager.Logout(); err != nil {
		return fmt.Errorf("logout incomplete: %w", err)
	}
	return nil
}
