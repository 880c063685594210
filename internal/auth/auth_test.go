package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/token"
)

func TestIssuer_RoundTrip(t *testing.T) {
	issuer := NewIssuer("test-secret-0123456789", time.Hour)

	tok, err := issuer.GenerateToken("user-1", "ana@example.com", "admin")
	require.NoError(t, err)

	claims, err := issuer.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)

	// The client reads the same claims without the secret
	clientClaims, ok := token.ParseClaims(tok)
	require.True(t, ok)
	assert.Equal(t, "user-1", clientClaims.UserID)
	assert.False(t, token.Expired(tok, time.Now()))
}

func TestIssuer_RejectsExpiredAndForeignTokens(t *testing.T) {
	issuer := NewIssuer("test-secret-0123456789", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }

	expired, err := issuer.GenerateToken("user-1", "ana@example.com", "staff")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.ValidateToken(expired)
	assert.Error(t, err)

	other := NewIssuer("another-secret-0123456789", time.Hour)
	foreign, err := other.GenerateToken("user-1", "ana@example.com", "staff")
	require.NoError(t, err)
	_, err = issuer.ValidateToken(foreign)
	assert.Error(t, err)
}

func TestIssuer_RequiresSecret(t *testing.T) {
	_, err := NewIssuer("", time.Hour).GenerateToken("u", "e", "r")
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("santateresa")
	require.NoError(t, err)
	assert.NotEqual(t, "santateresa", hash)

	assert.NoError(t, VerifyPassword("santateresa", hash))
	assert.Error(t, VerifyPassword("wrong", hash))
}

func TestSessionData(t *testing.T) {
	s := &SessionData{StoreIDs: []string{"s1"}, Permissions: []string{"sales:read"}}
	assert.True(t, s.Can("sales:read"))
	assert.False(t, s.Can("sales:write"))
	assert.True(t, s.InStore("s1"))
	assert.False(t, s.InStore("s2"))
}
