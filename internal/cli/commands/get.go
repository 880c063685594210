package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/api"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/pipeline"
)

// NewGetCmd creates the get command
func NewGetCmd() *cobra.Command {
	var storeFlag string

	cmd := &cobra.Command{
		Use:   "get <resource>",
		Short: "Read a store-scoped resource (sales, products, rentals...)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *App) error {
				if err := app.requireSession(cmd.Context()); err != nil {
					return err
				}

				store, err := app.resolveStore(cmd.Context(), storeFlag)
				if err != nil {
					return err
				}

				return runGet(cmd.Context(), cmd.OutOrStdout(), app, store, args[0])
			})
		},
	}

	cmd.Flags().StringVar(&storeFlag, "store", "", "Store ID, alias or name (uses the selected store if not specified)")

	return cmd
}

func runGet(ctx context.Context, out io.Writer, app *App, store *api.Store, resource string) error {
	raw, err := app.Cache.GetScoped(ctx, store.ID, app.sessionID(), resource, func(ctx context.Context) (json.RawMessage, error) {
		return app.Client.StoreResource(ctx, store.ID, resource)
	})
	if err != nil {
		if app.Manager.ObserveError(ctx, err) {
			return fmt.Errorf("you do not have permission to read %s in %s", resource, store.Name)
		}
		if pe, ok := pipeline.AsError(err); ok && pe.StatusCode != 0 {
			return fmt.Errorf("failed to read %s (status %d): %s", resource, pe.StatusCode, pe.Body)
		}
		return fmt.Errorf("failed to read %s: %w", resource, err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		_, err = out.Write(raw)
		return err
	}
	pretty.WriteByte('\n')
	_, err = pretty.WriteTo(out)
	return err
}

// sessionID tags cache entries with the logged-in user so they can be
// invalidated together.
func (a *App) sessionID() string {
	if snap := a.Store.Snapshot(); snap.User != nil {
		return snap.User.ID
	}
	return ""
}
