package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/api"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/cli/storeselect"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/cli/userconfig"
)

// NewSelectStoreCmd creates the select-store command
func NewSelectStoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select-store [id-alias-or-name]",
		Short: "Select the store to use for commands",
		Long: `Select the store to use for commands.

If no param is provided, an interactive prompt will be shown.

Examples:
  $ storectl select-store            # Interactive selection
  $ storectl select-store 01J9X...   # Select by ID
  $ storectl select-store centro     # Select by alias from storectl.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ref string
			if len(args) > 0 {
				ref = args[0]
			}
			return withApp(func(app *App) error {
				if err := app.requireSession(cmd.Context()); err != nil {
					return err
				}
				_, err := runSelectStore(cmd, app, ref)
				return err
			})
		},
	}

	return cmd
}

func runSelectStore(cmd *cobra.Command, app *App, ref string) (*api.Store, error) {
	stores, err := app.stores(cmd.Context())
	if err != nil {
		return nil, err
	}

	var store *api.Store
	if ref != "" {
		store, err = storeselect.FindStore(stores, app.Project, ref)
	} else {
		store, err = storeselect.Prompt(stores, app.Project)
	}
	if err != nil {
		return nil, err
	}

	if err := switchStore(app, store.ID); err != nil {
		return nil, err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Selected store: %s\n", storeselect.Label(store, app.Project))
	return store, nil
}

// switchStore persists next as the selected store, then invalidates its
// cached data so the next read loads fresh.
func switchStore(app *App, next string) error {
	prev, err := userconfig.GetSelectedStore()
	if err != nil {
		return fmt.Errorf("failed to load user config: %w", err)
	}

	if err := userconfig.SetSelectedStore(next); err != nil {
		return fmt.Errorf("failed to save selected store: %w", err)
	}

	app.Cache.SwitchStore(prev, next)
	return nil
}
