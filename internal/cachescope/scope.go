// Package cachescope caches server data partitioned by store.
//
// Entries are addressed by (tenant, key). Every invalidation and purge is
// scoped to one tenant and never touches another tenant's entries. The empty
// tenant ID holds global data that belongs to no store.
package cachescope

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Global is the tenant ID of entries that are not store-scoped
const Global = ""

// Entry is one cached response
type Entry struct {
	TenantID  string
	SessionID string
	Key       string
	Value     json.RawMessage
	FetchedAt time.Time
	Valid     bool
}

// FetchFunc loads a fresh value for a cache miss
type FetchFunc func(ctx context.Context) (json.RawMessage, error)

type entryKey struct {
	tenant string
	key    string
}

// Scope is a tenant-partitioned cache. It is safe for concurrent use.
type Scope struct {
	mu      sync.Mutex
	entries map[entryKey]*Entry
	// gens advance on every invalidation or purge of a tenant, so a fetch
	// that straddles one does not store a stale value.
	gens map[string]uint64
	// epoch advances on Purge and fences fetches of every tenant, including
	// tenants that hold no entries yet.
	epoch uint64

	group  singleflight.Group
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Scope
type Option func(*Scope)

// WithClock sets the time source for FetchedAt
func WithClock(now func() time.Time) Option {
	return func(s *Scope) { s.now = now }
}

// WithLogger sets the scope's logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scope) { s.logger = l }
}

// New creates an empty scope
func New(opts ...Option) *Scope {
	s := &Scope{
		entries: make(map[entryKey]*Entry),
		gens:    make(map[string]uint64),
		now:     time.Now,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the cached value for (tenantID, key) or loads it with fetch.
// Concurrent misses for the same entry share a single fetch.
func (s *Scope) Get(ctx context.Context, tenantID, key string, fetch FetchFunc) (json.RawMessage, error) {
	return s.GetScoped(ctx, tenantID, "", key, fetch)
}

// GetScoped is Get for an entry tied to sessionID
func (s *Scope) GetScoped(ctx context.Context, tenantID, sessionID, key string, fetch FetchFunc) (json.RawMessage, error) {
	if v, ok := s.lookup(tenantID, key); ok {
		return v, nil
	}

	v, err, shared := s.group.Do(tenantID+"\x00"+key, func() (any, error) {
		s.mu.Lock()
		gen, epoch := s.gens[tenantID], s.epoch
		s.mu.Unlock()

		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		if s.gens[tenantID] == gen && s.epoch == epoch {
			s.entries[entryKey{tenantID, key}] = &Entry{
				TenantID:  tenantID,
				SessionID: sessionID,
				Key:       key,
				Value:     bytes.Clone(value),
				FetchedAt: s.now(),
				Valid:     true,
			}
		} else {
			s.logger.Debug().Str("tenant_id", tenantID).Str("key", key).Msg("Tenant changed during fetch, not caching")
		}
		s.mu.Unlock()
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug().Str("tenant_id", tenantID).Str("key", key).Msg("Joined in-flight fetch")
	}
	return bytes.Clone(v.(json.RawMessage)), nil
}

// put stores a valid entry directly
func (s *Scope) put(tenantID, key string, value json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entryKey{tenantID, key}] = &Entry{
		TenantID:  tenantID,
		Key:       key,
		Value:     bytes.Clone(value),
		FetchedAt: s.now(),
		Valid:     true,
	}
}

// peek returns a copy of the entry without fetching
func (s *Scope) peek(tenantID, key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryKey{tenantID, key}]
	if !ok {
		return Entry{}, false
	}
	out := *e
	out.Value = bytes.Clone(e.Value)
	return out, true
}

// InvalidateStoreQueries marks every entry of tenantID invalid. A non-empty
// sessionID also invalidates entries tagged with it in any tenant.
func (s *Scope) InvalidateStoreQueries(tenantID, sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	touched := map[string]struct{}{tenantID: {}}
	for _, e := range s.entries {
		if e.TenantID == tenantID || (sessionID != "" && e.SessionID == sessionID) {
			if e.Valid {
				n++
			}
			e.Valid = false
			touched[e.TenantID] = struct{}{}
		}
	}
	for t := range touched {
		s.gens[t]++
	}

	s.logger.Debug().Str("tenant_id", tenantID).Str("session_id", sessionID).Int("entries", n).Msg("Invalidated store queries")
	return n
}

// ClearStoreCache removes every entry of tenantID
func (s *Scope) ClearStoreCache(tenantID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k := range s.entries {
		if k.tenant == tenantID {
			delete(s.entries, k)
			n++
		}
	}
	s.gens[tenantID]++

	s.logger.Debug().Str("tenant_id", tenantID).Int("entries", n).Msg("Cleared store cache")
	return n
}

// Purge removes every entry of every tenant. Fetches still running when it
// is called do not store their results.
func (s *Scope) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	clear(s.entries)
	s.epoch++

	s.logger.Debug().Int("entries", n).Msg("Purged cache")
	return n
}

// InvalidateGlobalQueries marks every global entry invalid
func (s *Scope) InvalidateGlobalQueries() int {
	return s.InvalidateStoreQueries(Global, "")
}

// SwitchStore invalidates next so it loads fresh. prev keeps its entries;
// callers that want them gone call ClearStoreCache(prev).
func (s *Scope) SwitchStore(prev, next string) {
	n := s.InvalidateStoreQueries(next, "")
	s.logger.Info().Str("from", prev).Str("to", next).Int("invalidated", n).Msg("Switched store")
}

// Tenants lists tenants that currently hold entries, sorted
func (s *Scope) Tenants() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	for k := range s.entries {
		seen[k.tenant] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of entries, valid or not
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Scope) lookup(tenantID, key string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryKey{tenantID, key}]
	if !ok || !e.Valid {
		return nil, false
	}
	return bytes.Clone(e.Value), true
}
