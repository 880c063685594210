package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/api"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/cachescope"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/cli/storeselect"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/session"
)

const shellHelp = `Commands:
  whoami               show the current user and permissions
  stores               list stores
  use <store>          switch to a store (ID, alias or name)
  get <resource>       read a resource of the current store (cached)
  refresh [global]     invalidate cached data of the current store, or global data
  forget <store>       drop every cached entry of a store
  sync                 refresh permissions now
  logout               log out and leave the shell
  exit                 leave the shell`

var errShellExit = errors.New("exit")

// NewShellCmd creates the shell command
func NewShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session that keeps cache and permissions warm",
		Long: `Start an interactive session.

Unlike one-shot commands, the shell keeps a single session alive: responses
are cached per store, switching stores refreshes the new store's data, and
permissions are re-checked in the background.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *App) error {
				if err := app.requireSession(cmd.Context()); err != nil {
					return err
				}
				return runShell(cmd, app)
			})
		},
	}
}

type shell struct {
	cmd     *cobra.Command
	app     *App
	out     io.Writer
	current *api.Store
}

func runShell(cmd *cobra.Command, app *App) error {
	sh := &shell{cmd: cmd, app: app, out: cmd.OutOrStdout()}

	if err := app.Sync.StartPeriodic(cmd.Context()); err != nil {
		return err
	}

	unsubscribe := app.Store.Subscribe(func(snap session.Session) {
		app.Logger.Debug().Str("state", snap.State.String()).Msg("Session state changed")
	})
	defer unsubscribe()

	if store, err := app.resolveStore(cmd.Context(), ""); err == nil {
		sh.current = store
		fmt.Fprintf(sh.out, "Using store %s\n", storeselect.Label(store, app.Project))
	} else {
		app.Logger.Debug().Err(err).Msg("No store selected")
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(sh.out, "storectl> ")
		if !scanner.Scan() {
			fmt.Fprintln(sh.out)
			return scanner.Err()
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		err := sh.exec(fields[0], fields[1:])
		if errors.Is(err, errShellExit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(sh.out, "Error: %v\n", err)
		}
	}
}

func (sh *shell) exec(name string, args []string) error {
	ctx := sh.cmd.Context()

	switch name {
	case "help", "?":
		fmt.Fprintln(sh.out, shellHelp)
	case "exit", "quit":
		return errShellExit
	case "whoami":
		printSession(sh.out, sh.app.Store.Snapshot())
	case "stores", "ls":
		return runList(sh.cmd, sh.app)
	case "use":
		if len(args) != 1 {
			return fmt.Errorf("usage: use <store>")
		}
		store, err := runSelectStore(sh.cmd, sh.app, args[0])
		if err != nil {
			return err
		}
		sh.current = store
	case "get":
		if len(args) != 1 {
			return fmt.Errorf("usage: get <resource>")
		}
		if sh.current == nil {
			return fmt.Errorf("no store selected, run 'use <store>' first")
		}
		return runGet(ctx, sh.out, sh.app, sh.current, args[0])
	case "refresh":
		if len(args) == 1 && args[0] == "global" {
			n := sh.app.Cache.InvalidateGlobalQueries()
			fmt.Fprintf(sh.out, "Invalidated %d global entries\n", n)
			return nil
		}
		if sh.current == nil {
			return fmt.Errorf("no store selected, run 'use <store>' first")
		}
		n := sh.app.Cache.InvalidateStoreQueries(sh.current.ID, sh.app.sessionID())
		fmt.Fprintf(sh.out, "Invalidated %d entries for %s\n", n, sh.current.Name)
	case "forget":
		if len(args) != 1 {
			return fmt.Errorf("usage: forget <store>")
		}
		id := sh.app.Project.ResolveStoreID(args[0])
		n := sh.app.Cache.ClearStoreCache(id)
		fmt.Fprintf(sh.out, "Removed %d cached entries for %s\n", n, id)
	case "sync":
		return runSync(sh.cmd, sh.app)
	case "logout":
		if err := logout(sh.app, sh.out); err != nil {
			return err
		}
		return errShellExit
	case "cache":
		fmt.Fprintf(sh.out, "%d entries across stores %s\n", sh.app.Cache.Len(), formatTenants(sh.app.Cache.Tenants()))
	default:
		return fmt.Errorf("unknown command %q, type 'help'", name)
	}
	return nil
}

func formatTenants(tenants []string) string {
	names := make([]string, len(tenants))
	for i, t := range tenants {
		if t == cachescope.Global {
			t = "(global)"
		}
		names[i] = t
	}
	return "[" + strings.Join(names, ", ") + "]"
}
