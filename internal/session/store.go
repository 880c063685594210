// Package session holds the single source of truth for who the current user
// is, and drives the session lifecycle (boot, login, logout).
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrNoToken     = errors.New("no token held")
	ErrNoUser      = errors.New("no authenticated user")
	ErrUserChanged = errors.New("session user changed")
)

// Store is the session state container. Every transition happens under one
// lock, so callers never observe a partial state. Subscribers are notified
// after the lock is released, in subscription order.
//
// While Authenticating the store holds a token but no user. Token() exposes
// it so the request pipeline can authenticate the user fetch, but Snapshot()
// reports no token until a user is set.
type Store struct {
	mu         sync.Mutex
	state      State
	user       *User
	perms      PermissionSet
	token      string
	lastSynced time.Time

	subs    []subscriber
	nextSub int

	ready     chan struct{}
	readyOnce sync.Once
}

type subscriber struct {
	id int
	fn func(Session)
}

// NewStore creates an empty, Anonymous store
func NewStore() *Store {
	return &Store{ready: make(chan struct{})}
}

// Token returns the held bearer token, including while Authenticating
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// State returns the current lifecycle state
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a copy of the externally visible session
func (s *Store) Snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Session {
	snap := Session{State: s.state}
	if s.user == nil {
		return snap
	}
	snap.User = s.user.clone()
	snap.Permissions = s.perms.Clone()
	snap.Token = s.token
	snap.LastSyncedAt = s.lastSynced
	return snap
}

// SetToken records a hydrated token. A non-empty token drops any user and
// moves to Authenticating; an empty token resets to Anonymous.
func (s *Store) SetToken(tok string) {
	s.transition(func() error {
		s.clearLocked()
		if tok != "" {
			s.token = tok
			s.state = Authenticating
		}
		return nil
	})
}

// SetUser completes authentication with the fetched user and permission snapshot
func (s *Store) SetUser(u *User, perms PermissionSet, at time.Time) error {
	if u == nil {
		return fmt.Errorf("set user: %w", ErrNoUser)
	}
	return s.transition(func() error {
		if s.token == "" {
			return ErrNoToken
		}
		s.user = u.clone()
		s.perms = perms.Clone()
		s.lastSynced = at
		s.state = Authenticated
		return nil
	})
}

// Establish sets token, user and permissions in a single transition (login)
func (s *Store) Establish(tok string, u *User, perms PermissionSet, at time.Time) error {
	if tok == "" {
		return ErrNoToken
	}
	if u == nil {
		return ErrNoUser
	}
	return s.transition(func() error {
		s.token = tok
		s.user = u.clone()
		s.perms = perms.Clone()
		s.lastSynced = at
		s.state = Authenticated
		return nil
	})
}

// FailAuthentication abandons an in-flight authentication and drops the token
func (s *Store) FailAuthentication() {
	s.transition(func() error {
		if s.state != Authenticating {
			return errNoChange
		}
		s.clearLocked()
		return nil
	})
}

// MarkStale flags the permission snapshot as out of date
func (s *Store) MarkStale() error {
	return s.transition(func() error {
		switch s.state {
		case Authenticated, PermissionSynced:
			s.state = PermissionStale
			return nil
		case PermissionStale:
			return errNoChange
		default:
			return ErrNoUser
		}
	})
}

// ApplyPermissions replaces the permission snapshot wholesale for userID.
// It fails with ErrUserChanged if a different user is now signed in.
func (s *Store) ApplyPermissions(userID string, perms PermissionSet, at time.Time) error {
	return s.transition(func() error {
		if err := s.checkUserLocked(userID); err != nil {
			return err
		}
		s.perms = perms.Clone()
		s.lastSynced = at
		s.state = PermissionSynced
		return nil
	})
}

// TouchSynced confirms the current snapshot for userID without replacing it
func (s *Store) TouchSynced(userID string, at time.Time) error {
	return s.transition(func() error {
		if err := s.checkUserLocked(userID); err != nil {
			return err
		}
		s.lastSynced = at
		s.state = PermissionSynced
		return nil
	})
}

// BeginLogout enters the transient LoggingOut state
func (s *Store) BeginLogout() {
	s.transition(func() error {
		if s.state == Anonymous {
			return errNoChange
		}
		s.state = LoggingOut
		return nil
	})
}

// Reset clears token, user and permissions and returns to Anonymous
func (s *Store) Reset() {
	s.transition(func() error {
		s.clearLocked()
		return nil
	})
}

// MarkReady signals that token hydration finished, successfully or not
func (s *Store) MarkReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// Ready is closed once MarkReady has been called
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Subscribe registers fn for every state change. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Session)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

var errNoChange = errors.New("no change")

// transition applies fn under the lock and notifies subscribers if it succeeded
func (s *Store) transition(fn func() error) error {
	s.mu.Lock()
	if err := fn(); err != nil {
		s.mu.Unlock()
		if errors.Is(err, errNoChange) {
			return nil
		}
		return err
	}
	snap := s.snapshotLocked()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(snap)
	}
	return nil
}

func (s *Store) clearLocked() {
	s.state = Anonymous
	s.user = nil
	s.perms = nil
	s.token = ""
	s.lastSynced = time.Time{}
}

func (s *Store) checkUserLocked(userID string) error {
	if s.user == nil || !s.state.HasUser() || s.state == LoggingOut {
		return ErrNoUser
	}
	if s.user.ID != userID {
		return ErrUserChanged
	}
	return nil
}
