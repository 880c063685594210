package auth

import "slices"

// SessionData represents the authenticated session context for a request
type SessionData struct {
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	StoreIDs    []string `json:"store_ids"`
	Permissions []string `json:"permissions"`
}

// Can reports whether the session holds permission
func (s *SessionData) Can(permission string) bool {
	return slices.Contains(s.Permissions, permission)
}

// InStore reports whether the session's user operates on storeID
func (s *SessionData) InStore(storeID string) bool {
	return slices.Contains(s.StoreIDs, storeID)
}
