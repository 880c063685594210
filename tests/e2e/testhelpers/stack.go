package testhelpers

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/api"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/cachescope"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/permsync"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/pipeline"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/session"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/token"
)

// Stack is one client process: session store, gateway client, synchronizer,
// cache and manager wired the way storectl wires them.
type Stack struct {
	Persister token.Persister
	Tokens    *token.Gateway
	Store     *session.Store
	Client    *api.Client
	Sync      *permsync.Synchronizer
	Cache     *cachescope.Scope
	Manager   *session.Manager
}

// NewStack wires a client against baseURL. Sharing persister between two
// stacks simulates a process restart.
func NewStack(t *testing.T, baseURL string, persister token.Persister) *Stack {
	t.Helper()

	s := &Stack{Persister: persister, Tokens: token.NewGateway(persister)}
	s.Store = session.NewStore()
	s.Client = api.NewHTTP(baseURL, 5*time.Second, s.Store, zerolog.Nop())
	s.Client.SetRetryPolicy(pipeline.RetryPolicy{MaxAttempts: 1})
	s.Sync = permsync.New(s.Store, s.Client, permsync.Config{SettleDelay: time.Millisecond})
	s.Cache = cachescope.New()

	var err error
	s.Manager, err = session.NewManager(session.ManagerConfig{
		Store:     s.Store,
		Tokens:    s.Tokens,
		Authority: s.Client,
		Syncer:    s.Sync,
		Cache:     s.Cache,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(s.Manager.Close)

	return s
}

// WaitIdle blocks until no permission check is pending or running
func (s *Stack) WaitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return !s.Sync.InFlight() }, 5*time.Second, 5*time.Millisecond)
}
