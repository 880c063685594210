package session

import (
	"slices"
	"time"
)

// State is the lifecycle position of a session
type State int

const (
	// Anonymous means no token and no user. Initial state.
	Anonymous State = iota
	// Authenticating means a token is held and the user fetch is in flight.
	Authenticating
	// Authenticated means user and permission set are populated.
	Authenticated
	// PermissionStale means the permission set is considered out of date.
	PermissionStale
	// PermissionSynced means the permission set was just confirmed by the authority.
	PermissionSynced
	// LoggingOut is transient while logout tears the session down.
	LoggingOut
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case PermissionStale:
		return "permission_stale"
	case PermissionSynced:
		return "permission_synced"
	case LoggingOut:
		return "logging_out"
	default:
		return "unknown"
	}
}

// HasUser reports whether a user is populated in this state
func (s State) HasUser() bool {
	return s == Authenticated || s == PermissionStale || s == PermissionSynced || s == LoggingOut
}

// User is the authenticated principal as returned by the gateway
type User struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Role     string   `json:"role"`
	StoreIDs []string `json:"store_ids"`
}

func (u *User) clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.StoreIDs = slices.Clone(u.StoreIDs)
	return &c
}

// PermissionSet is a sorted, de-duplicated snapshot of capability names
// ("module:action"). A nil set means no snapshot is held; an empty non-nil
// set is a snapshot that grants nothing.
type PermissionSet []string

// NewPermissionSet normalises perms into a PermissionSet. It never returns nil.
func NewPermissionSet(perms ...string) PermissionSet {
	set := make(PermissionSet, 0, len(perms))
	for _, p := range perms {
		if p != "" {
			set = append(set, p)
		}
	}
	slices.Sort(set)
	return slices.Compact(set)
}

// Has reports whether perm is granted
func (p PermissionSet) Has(perm string) bool {
	_, found := slices.BinarySearch(p, perm)
	return found
}

// Equal reports whether both snapshots grant the same capabilities.
// An absent snapshot only equals another absent snapshot.
func (p PermissionSet) Equal(other PermissionSet) bool {
	if (p == nil) != (other == nil) {
		return false
	}
	return slices.Equal(p, other)
}

// Clone returns an independent copy, preserving nil
func (p PermissionSet) Clone() PermissionSet {
	if p == nil {
		return nil
	}
	return slices.Clone(p)
}

// Session is an immutable snapshot of the store's state
type Session struct {
	User         *User
	Permissions  PermissionSet
	Token        string
	LastSyncedAt time.Time
	State        State
}

// Authenticated reports whether the snapshot carries a user
func (s Session) Authenticated() bool {
	return s.User != nil
}
