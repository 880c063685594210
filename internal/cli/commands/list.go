package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/cli/userconfig"
)

// NewListCmd creates the stores command
func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "stores",
		Aliases: []string{"ls"},
		Short:   "List the stores you can operate on",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *App) error {
				if err := app.requireSession(cmd.Context()); err != nil {
					return err
				}
				return runList(cmd, app)
			})
		},
	}
}

func runList(cmd *cobra.Command, app *App) error {
	out := cmd.OutOrStdout()

	stores, err := app.stores(cmd.Context())
	if err != nil {
		return err
	}

	if len(stores) == 0 {
		fmt.Fprintln(out, "No stores available for this account.")
		return nil
	}

	selected, err := userconfig.GetSelectedStore()
	if err != nil {
		return fmt.Errorf("failed to load user config: %w", err)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tNAME\tALIAS")
	fmt.Fprintln(w, "\t──\t────\t─────")

	for _, store := range stores {
		marker := ""
		if store.ID == selected {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", marker, store.ID, store.Name, app.Project.AliasFor(store.ID))
	}

	return w.Flush()
}
