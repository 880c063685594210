package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/api"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/cachescope"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/cli/config"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/cli/storeselect"
	appconfig "github.com/Santa-TeresaERP/ST-frontend-sub003/internal/config"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/logger"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/permsync"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/session"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/token"
)

var errNotLoggedIn = errors.New("not authenticated. Please run 'storectl login' first")

// App holds the session machinery shared by every command
type App struct {
	Env     *appconfig.Config
	Project *config.Config
	Logger  zerolog.Logger

	Tokens  *token.Gateway
	Store   *session.Store
	Client  *api.Client
	Sync    *permsync.Synchronizer
	Cache   *cachescope.Scope
	Manager *session.Manager

	closers []func() error
}

// newApp wires the session stack from the environment and the project file.
// The gateway URL comes from STORECTL_API_URL, then storectl.yaml, then the
// local default.
func newApp() (*App, error) {
	env, err := appconfig.Load()
	if err != nil {
		return nil, err
	}

	project, err := config.LoadFromCurrentDir()
	if err != nil {
		return nil, fmt.Errorf("failed to load project config: %w", err)
	}

	log := logger.New(os.Stderr, env.Logging.Level, env.Logging.Format)

	baseURL := env.Gateway.BaseURL
	if os.Getenv("STORECTL_API_URL") == "" && project.APIURL != "" {
		baseURL = project.APIURL
	}

	app := &App{Env: env, Project: project, Logger: log}

	persister, err := app.openPersister()
	if err != nil {
		return nil, err
	}
	app.Tokens = token.NewGateway(persister)

	app.Store = session.NewStore()
	app.Client = api.NewHTTP(baseURL, env.Gateway.Timeout, app.Store, log)
	app.Sync = permsync.New(app.Store, app.Client, permsync.Config{
		SettleDelay: env.Sync.SettleDelay,
		ResyncSpec:  env.Sync.ResyncSchedule,
		Logger:      log.With().Str("component", "permsync").Logger(),
	})
	app.Cache = cachescope.New(cachescope.WithLogger(log.With().Str("component", "cache").Logger()))

	app.Manager, err = session.NewManager(session.ManagerConfig{
		Store:     app.Store,
		Tokens:    app.Tokens,
		Authority: app.Client,
		Syncer:    app.Sync,
		Cache:     app.Cache,
		Logger:    log.With().Str("component", "session").Logger(),
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	return app, nil
}

func (a *App) openPersister() (token.Persister, error) {
	switch a.Env.Token.Backend {
	case "file":
		bolt, err := token.OpenBoltPersister(a.Env.Token.FilePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, bolt.Close)
		return bolt, nil
	case "memory":
		return token.NewMemoryPersister(), nil
	default:
		return token.NewKeyringPersister(a.Env.Token.KeyringService), nil
	}
}

// Close stops background work and releases the token store
func (a *App) Close() {
	if a.Manager != nil {
		a.Manager.Close()
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close resource")
		}
	}
}

// requireSession restores the stored session and fails unless a user is
// authenticated.
func (a *App) requireSession(ctx context.Context) error {
	if err := a.Manager.Boot(ctx); err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	if !a.Store.Snapshot().Authenticated() {
		return errNotLoggedIn
	}
	return nil
}

// stores lists the user's stores through the global cache partition
func (a *App) stores(ctx context.Context) ([]api.Store, error) {
	raw, err := a.Cache.Get(ctx, cachescope.Global, "stores", func(ctx context.Context) (json.RawMessage, error) {
		stores, err := a.Client.Stores(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(stores)
	})
	if err != nil {
		a.Manager.ObserveError(ctx, err)
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}

	var stores []api.Store
	if err := json.Unmarshal(raw, &stores); err != nil {
		return nil, fmt.Errorf("failed to decode stores: %w", err)
	}
	return stores, nil
}

// resolveStore picks the store a command operates on
func (a *App) resolveStore(ctx context.Context, storeFlag string) (*api.Store, error) {
	stores, err := a.stores(ctx)
	if err != nil {
		return nil, err
	}
	return storeselect.ResolveStore(stores, a.Project, storeFlag)
}

// withApp runs fn against a freshly wired App
func withApp(fn func(app *App) error) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}
