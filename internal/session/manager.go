package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/pipeline"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/token"
)

// TokenStore persists the bearer token (token.Gateway)
type TokenStore interface {
	Load() (string, error)
	Save(tok string) error
	Clear() error
}

// Authority is the gateway's authentication surface (api.Client)
type Authority interface {
	Login(ctx context.Context, email, password string) (string, *User, PermissionSet, error)
	Me(ctx context.Context) (*User, PermissionSet, error)
}

// Syncer keeps the permission snapshot fresh (permsync.Synchronizer)
type Syncer interface {
	AutoSyncIfNeeded(ctx context.Context) bool
	// Cancel drops any pending or running check for the current session.
	Cancel()
	// Stop tears the syncer down for good.
	Stop()
}

// CachePurger drops cached server data (cachescope.Scope)
type CachePurger interface {
	// Purge drops every entry of every tenant, and results of fetches still
	// in flight.
	Purge() int
}

// ManagerConfig wires a Manager's collaborators
type ManagerConfig struct {
	Store     *Store
	Tokens    TokenStore
	Authority Authority
	Syncer    Syncer      // optional
	Cache     CachePurger // optional
	Logger    zerolog.Logger
	Clock     func() time.Time
}

// Manager drives the session lifecycle over a Store
type Manager struct {
	store     *Store
	tokens    TokenStore
	authority Authority
	syncer    Syncer
	cache     CachePurger
	logger    zerolog.Logger
	now       func() time.Time

	onLogout []func(prev Session)
}

// NewManager creates a manager. Store, Tokens and Authority are required.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Store == nil || cfg.Tokens == nil || cfg.Authority == nil {
		return nil, fmt.Errorf("store, tokens and authority are required")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Manager{
		store:     cfg.Store,
		tokens:    cfg.Tokens,
		authority: cfg.Authority,
		syncer:    cfg.Syncer,
		cache:     cfg.Cache,
		logger:    cfg.Logger,
		now:       cfg.Clock,
	}, nil
}

// Store returns the managed session store
func (m *Manager) Store() *Store {
	return m.store
}

// OnLogout registers fn to run after logout has fully cleared the session.
// fn receives the session as it was before logout.
func (m *Manager) OnLogout(fn func(prev Session)) {
	m.onLogout = append(m.onLogout, fn)
}

// Boot hydrates the session from durable storage. The store is marked ready
// on every path. A 401 from the gateway wipes the stored token; a transport
// failure keeps it for the next boot.
func (m *Manager) Boot(ctx context.Context) error {
	defer m.store.MarkReady()

	tok, err := m.tokens.Load()
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}
	if tok == "" {
		m.logger.Debug().Msg("No stored token, staying anonymous")
		return nil
	}

	if token.Expired(tok, m.now()) {
		m.logger.Info().Msg("Stored token has expired, discarding it")
		if err := m.tokens.Clear(); err != nil {
			return err
		}
		return nil
	}

	m.store.SetToken(tok)

	user, perms, err := m.authority.Me(ctx)
	if err != nil {
		m.store.FailAuthentication()
		if pipeline.IsAuthenticationError(err) {
			m.logger.Info().Msg("Stored token was rejected, clearing it")
			if clearErr := m.tokens.Clear(); clearErr != nil {
				m.logger.Warn().Err(clearErr).Msg("Failed to clear rejected token")
			}
		}
		return fmt.Errorf("failed to fetch current user: %w", err)
	}

	if err := m.store.SetUser(user, perms, m.now()); err != nil {
		return err
	}

	m.logger.Debug().Str("user_id", user.ID).Msg("Session restored")
	m.store.MarkReady()
	m.autoSync(ctx)
	return nil
}

// Login authenticates with the gateway, persists the token and populates the session
func (m *Manager) Login(ctx context.Context, email, password string) (*User, error) {
	tok, user, perms, err := m.authority.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	if err := m.tokens.Save(tok); err != nil {
		return nil, fmt.Errorf("failed to save authentication token: %w", err)
	}

	if m.syncer != nil {
		m.syncer.Cancel()
	}
	if err := m.store.Establish(tok, user, perms, m.now()); err != nil {
		return nil, err
	}
	m.store.MarkReady()

	m.logger.Info().Str("user_id", user.ID).Msg("User logged in")
	m.autoSync(ctx)
	return user.clone(), nil
}

// Logout wipes the durable token, cached store data and the session, in
// that order, before returning. OnLogout callbacks run last.
func (m *Manager) Logout() error {
	prev := m.store.Snapshot()
	m.store.BeginLogout()

	if m.syncer != nil {
		m.syncer.Cancel()
	}

	clearErr := m.tokens.Clear()

	if m.cache != nil {
		m.cache.Purge()
	}

	m.store.Reset()

	if clearErr != nil {
		m.logger.Error().Err(clearErr).Msg("Failed to wipe stored token during logout")
	} else if prev.User != nil {
		m.logger.Info().Str("user_id", prev.User.ID).Msg("User logged out")
	}

	for _, fn := range m.onLogout {
		fn(prev)
	}
	return clearErr
}

// ObserveError inspects a failed gateway call. A permission error marks the
// snapshot stale and schedules a resync; it reports whether err was one.
func (m *Manager) ObserveError(ctx context.Context, err error) bool {
	if !pipeline.IsPermissionError(err) {
		return false
	}
	if staleErr := m.store.MarkStale(); staleErr != nil {
		return true
	}
	m.autoSync(ctx)
	return true
}

// Close cancels background work owned by the manager
func (m *Manager) Close() {
	if m.syncer != nil {
		m.syncer.Stop()
	}
}

func (m *Manager) autoSync(ctx context.Context) {
	if m.syncer != nil {
		m.syncer.AutoSyncIfNeeded(ctx)
	}
}
