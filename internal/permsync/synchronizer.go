// Package permsync keeps the session's permission snapshot in line with the
// gateway's authority endpoint.
//
// AutoSyncIfNeeded may be called from anywhere, any number of times. An
// atomic claim on the in-flight marker collapses concurrent triggers into at
// most one outstanding request, and the first check after construction waits
// a settle delay so boot-time hydration gets the network first.
package permsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/pipeline"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/session"
)

// DefaultSettleDelay is how long the first check waits after boot
const DefaultSettleDelay = time.Second

var ErrNoSession = errors.New("no authenticated session")

// SyncError is a failed refresh. It is never fatal: the previous snapshot is
// kept and the next trigger may retry.
type SyncError struct {
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("permission sync failed: %v", e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Fetcher reads the current permission snapshot from the authority
type Fetcher interface {
	Permissions(ctx context.Context) (session.PermissionSet, error)
}

// Config configures a Synchronizer
type Config struct {
	SettleDelay time.Duration // 0 checks at once; negative means DefaultSettleDelay
	ResyncSpec  string        // cron spec for periodic checks; empty disables
	Scheduler   Scheduler     // default RealScheduler
	Clock       func() time.Time
	Logger      zerolog.Logger
}

// Synchronizer detects stale permission snapshots and refreshes them
type Synchronizer struct {
	store   *session.Store
	fetcher Fetcher
	cfg     Config

	inFlight  atomic.Bool
	attempted atomic.Bool
	// rerun is set when Cancel could not stop a check that was already
	// running; that check re-arms once it releases the claim.
	rerun atomic.Bool

	idleMu sync.Mutex
	idle   chan struct{} // closed when the claim is next released

	mu      sync.Mutex
	pending Task
	cancel  context.CancelFunc
	cron    *cron.Cron
}

// New creates a synchronizer for store
func New(store *session.Store, fetcher Fetcher, cfg Config) *Synchronizer {
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = RealScheduler
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Synchronizer{store: store, fetcher: fetcher, cfg: cfg}
}

// AutoSyncIfNeeded schedules a staleness check unless there is no user or a
// check is already pending or running. It reports whether one was scheduled.
func (s *Synchronizer) AutoSyncIfNeeded(ctx context.Context) bool {
	if !s.store.Snapshot().Authenticated() {
		s.cfg.Logger.Debug().Msg("No session user, skipping permission sync")
		return false
	}

	if !s.inFlight.CompareAndSwap(false, true) {
		s.cfg.Logger.Debug().Msg("Permission sync already pending")
		return false
	}
	s.rerun.Store(false)

	var delay time.Duration
	if s.attempted.CompareAndSwap(false, true) {
		delay = s.cfg.SettleDelay
	}

	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = cancel
	s.pending = s.cfg.Scheduler.AfterFunc(delay, func() {
		s.run(ctx, runCtx, cancel)
	})

	s.cfg.Logger.Debug().Dur("delay", delay).Msg("Permission sync scheduled")
	return true
}

// SyncNow refreshes immediately. A pending check is dropped in its favour
// and a running one is waited out.
func (s *Synchronizer) SyncNow(ctx context.Context) (changed bool, err error) {
	for {
		idle := s.idleCh()
		if s.inFlight.CompareAndSwap(false, true) {
			break
		}
		if s.dropPending() {
			continue
		}
		select {
		case <-idle:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	s.rerun.Store(false)
	defer s.releaseClaim()
	return s.sync(ctx)
}

// InFlight reports whether a check is pending or running
func (s *Synchronizer) InFlight() bool {
	return s.inFlight.Load()
}

// Cancel drops a pending check and aborts a running one. The next
// AutoSyncIfNeeded waits the settle delay again, as after boot.
func (s *Synchronizer) Cancel() {
	s.abort(true)
}

// abort drops the pending check. With rearm, a check that is already running
// schedules one more once it ends.
func (s *Synchronizer) abort(rearm bool) {
	s.mu.Lock()
	task, cancel := s.pending, s.cancel
	s.pending, s.cancel = nil, nil
	s.mu.Unlock()

	s.attempted.Store(false)
	if !rearm {
		s.rerun.Store(false)
	}
	if task == nil {
		return
	}
	if task.Stop() {
		// Never started, so nothing else will release the claim
		s.releaseClaim()
	} else {
		s.rerun.Store(rearm && s.inFlight.Load())
	}
	cancel()
}

// StartPeriodic runs AutoSyncIfNeeded on the configured cron schedule
func (s *Synchronizer) StartPeriodic(ctx context.Context) error {
	if s.cfg.ResyncSpec == "" {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.cfg.ResyncSpec, func() { s.AutoSyncIfNeeded(ctx) }); err != nil {
		return fmt.Errorf("invalid resync schedule %q: %w", s.cfg.ResyncSpec, err)
	}

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()

	c.Start()
	s.cfg.Logger.Debug().Str("schedule", s.cfg.ResyncSpec).Msg("Periodic permission sync started")
	return nil
}

// Stop cancels pending work and the periodic schedule
func (s *Synchronizer) Stop() {
	s.abort(false)

	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// run is the body of a scheduled check
func (s *Synchronizer) run(ctx, runCtx context.Context, cancel context.CancelFunc) {
	func() {
		defer s.release(cancel)

		// Hydration must finish before the check may act
		select {
		case <-s.store.Ready():
		case <-runCtx.Done():
			return
		}

		_, _ = s.sync(runCtx)
	}()

	if s.rerun.CompareAndSwap(true, false) {
		s.cfg.Logger.Debug().Msg("Check was cancelled while running, re-arming")
		s.AutoSyncIfNeeded(ctx)
	}
}

// dropPending stops a check that has not started yet and frees its claim
func (s *Synchronizer) dropPending() bool {
	s.mu.Lock()
	task, cancel := s.pending, s.cancel
	if task == nil || !task.Stop() {
		s.mu.Unlock()
		return false
	}
	s.pending, s.cancel = nil, nil
	s.mu.Unlock()

	cancel()
	s.releaseClaim()
	return true
}

func (s *Synchronizer) release(cancel context.CancelFunc) {
	cancel()
	s.releaseClaim()
}

func (s *Synchronizer) releaseClaim() {
	s.inFlight.Store(false)

	s.idleMu.Lock()
	if s.idle != nil {
		close(s.idle)
		s.idle = nil
	}
	s.idleMu.Unlock()
}

func (s *Synchronizer) idleCh() <-chan struct{} {
	s.idleMu.Lock()
	defer s.idleMu.Unlock()
	if s.idle == nil {
		s.idle = make(chan struct{})
	}
	return s.idle
}

// sync compares the held snapshot with a freshly fetched one
func (s *Synchronizer) sync(ctx context.Context) (bool, error) {
	snap := s.store.Snapshot()
	if snap.User == nil {
		return false, ErrNoSession
	}

	fresh, err := s.fetcher.Permissions(ctx)
	if err != nil {
		if pipeline.IsPermissionError(err) {
			s.cfg.Logger.Debug().Msg("Permission refresh denied, keeping current snapshot")
		} else {
			s.cfg.Logger.Warn().Err(err).Msg("Permission refresh failed, keeping current snapshot")
		}
		return false, &SyncError{Err: err}
	}

	now := s.cfg.Clock()
	if snap.Permissions == nil || !snap.Permissions.Equal(fresh) {
		if err := s.store.ApplyPermissions(snap.User.ID, fresh, now); err != nil {
			return false, fmt.Errorf("failed to apply permissions: %w", err)
		}
		s.cfg.Logger.Info().
			Str("user_id", snap.User.ID).
			Int("permissions", len(fresh)).
			Msg("Permission snapshot updated")
		return true, nil
	}

	if err := s.store.TouchSynced(snap.User.ID, now); err != nil {
		return false, fmt.Errorf("failed to confirm permissions: %w", err)
	}
	return false, nil
}
