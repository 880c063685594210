package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func testUser() *User {
	return &User{ID: "user-1", Name: "Ana", Email: "ana@example.com", Role: "admin", StoreIDs: []string{"s1", "s2"}}
}

func assertInvariant(t *testing.T, snap Session) {
	t.Helper()
	assert.Equal(t, snap.Token == "", snap.User == nil,
		"token/user invariant violated in state %s", snap.State)
}

func TestStore_InvariantAcrossTransitions(t *testing.T) {
	s := NewStore()
	s.Subscribe(func(snap Session) { assertInvariant(t, snap) })

	steps := []func(){
		func() { s.SetToken("tok1") },
		func() { require.NoError(t, s.SetUser(testUser(), NewPermissionSet("sales:read"), t0)) },
		func() { require.NoError(t, s.MarkStale()) },
		func() { require.NoError(t, s.ApplyPermissions("user-1", NewPermissionSet("sales:read", "sales:write"), t0)) },
		func() { require.NoError(t, s.TouchSynced("user-1", t0.Add(time.Minute))) },
		func() { s.BeginLogout() },
		func() { s.Reset() },
		func() { s.SetToken("tok2") },
		func() { s.FailAuthentication() },
		func() { require.NoError(t, s.Establish("tok3", testUser(), nil, t0)) },
		func() { s.SetToken("") },
	}

	for _, step := range steps {
		step()
		assertInvariant(t, s.Snapshot())
	}
}

func TestStore_AuthenticatingHidesTokenFromSnapshot(t *testing.T) {
	s := NewStore()
	s.SetToken("tok1")

	assert.Equal(t, Authenticating, s.State())
	assert.Equal(t, "tok1", s.Token(), "pipeline still needs the token for /auth/me")

	snap := s.Snapshot()
	assert.Empty(t, snap.Token)
	assert.Nil(t, snap.User)
	assert.Equal(t, Authenticating, snap.State)
}

func TestStore_SetUserRequiresToken(t *testing.T) {
	s := NewStore()
	err := s.SetUser(testUser(), NewPermissionSet(), t0)
	assert.ErrorIs(t, err, ErrNoToken)
	assert.Equal(t, Anonymous, s.State())
}

func TestStore_PermissionTransitions(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Establish("tok1", testUser(), NewPermissionSet("a:read"), t0))
	assert.Equal(t, Authenticated, s.State())

	require.NoError(t, s.MarkStale())
	assert.Equal(t, PermissionStale, s.State())

	assert.ErrorIs(t, s.ApplyPermissions("someone-else", NewPermissionSet(), t0), ErrUserChanged)
	assert.Equal(t, PermissionStale, s.State())

	later := t0.Add(time.Hour)
	require.NoError(t, s.ApplyPermissions("user-1", NewPermissionSet("b:write"), later))

	snap := s.Snapshot()
	assert.Equal(t, PermissionSynced, snap.State)
	assert.Equal(t, NewPermissionSet("b:write"), snap.Permissions, "snapshot replaced wholesale")
	assert.Equal(t, later, snap.LastSyncedAt)
}

func TestStore_PermissionTransitionsNeedUser(t *testing.T) {
	s := NewStore()
	assert.ErrorIs(t, s.MarkStale(), ErrNoUser)
	assert.ErrorIs(t, s.ApplyPermissions("user-1", NewPermissionSet(), t0), ErrNoUser)
	assert.ErrorIs(t, s.TouchSynced("user-1", t0), ErrNoUser)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Establish("tok1", testUser(), NewPermissionSet("a:read"), t0))

	snap := s.Snapshot()
	snap.User.StoreIDs[0] = "mutated"
	snap.Permissions[0] = "mutated"

	again := s.Snapshot()
	assert.Equal(t, "s1", again.User.StoreIDs[0])
	assert.True(t, again.Permissions.Has("a:read"))
}

func TestStore_SubscribeAndUnsubscribe(t *testing.T) {
	s := NewStore()

	var states []State
	unsubscribe := s.Subscribe(func(snap Session) { states = append(states, snap.State) })

	s.SetToken("tok1")
	require.NoError(t, s.SetUser(testUser(), nil, t0))
	unsubscribe()
	s.Reset()

	assert.Equal(t, []State{Authenticating, Authenticated}, states)
}

func TestStore_NoNotificationWithoutChange(t *testing.T) {
	s := NewStore()
	calls := 0
	s.Subscribe(func(Session) { calls++ })

	s.FailAuthentication()
	s.BeginLogout()
	assert.Zero(t, calls)
}

func TestStore_Ready(t *testing.T) {
	s := NewStore()
	select {
	case <-s.Ready():
		t.Fatal("store should not be ready before MarkReady")
	default:
	}

	s.MarkReady()
	s.MarkReady()

	select {
	case <-s.Ready():
	default:
		t.Fatal("store should be ready")
	}
}

func TestStore_ConcurrentReadersSeeConsistentState(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	done := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					snap := s.Snapshot()
					if (snap.Token == "") != (snap.User == nil) {
						t.Errorf("partial state observed: %+v", snap)
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		s.SetToken("tok")
		_ = s.SetUser(testUser(), NewPermissionSet("a:read"), t0)
		s.BeginLogout()
		s.Reset()
	}
	close(done)
	wg.Wait()
}

func TestPermissionSet(t *testing.T) {
	set := NewPermissionSet("sales:write", "sales:read", "", "sales:read")
	assert.Equal(t, PermissionSet{"sales:read", "sales:write"}, set)
	assert.True(t, set.Has("sales:read"))
	assert.False(t, set.Has("rentals:read"))

	assert.True(t, set.Equal(NewPermissionSet("sales:read", "sales:write")))
	assert.False(t, set.Equal(NewPermissionSet("sales:read")))

	var none PermissionSet
	assert.True(t, none.Equal(nil))
	assert.False(t, none.Equal(NewPermissionSet()), "absent snapshot differs from an empty one")
	assert.Nil(t, none.Clone())
}
