package testhelpers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/config"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/models"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/server"
)

const (
	AdminEmail = "ana@santateresa.pe"
	StaffEmail = "luis@santateresa.pe"
	Password   = server.DemoPassword
	JWTSecret  = "e2e-secret-0123456789"
)

// Gateway is a seeded dev gateway served over a loopback listener
type Gateway struct {
	*httptest.Server
	Dev *server.Server
}

// StartGateway runs a freshly seeded gateway for the duration of the test
func StartGateway(t *testing.T) *Gateway {
	t.Helper()

	dev, err := server.New(config.DevGatewayConfig{
		Addr:        "127.0.0.1:0",
		DatabaseURL: filepath.Join(t.TempDir(), "gateway.sqlite"),
		JWTSecret:   JWTSecret,
		TokenTTL:    time.Hour,
		Seed:        true,
	}, zerolog.Nop())
	require.NoError(t, err)

	ts := httptest.NewServer(dev.Handler())
	t.Cleanup(func() {
		ts.Close()
		dev.Close()
	})

	return &Gateway{Server: ts, Dev: dev}
}

// StoreID returns the ID of the seeded store called name
func (g *Gateway) StoreID(t *testing.T, name string) string {
	t.Helper()

	var st models.Store
	require.NoError(t, g.Dev.GetDB().Where("name = ?", name).First(&st).Error)
	return st.ID
}

// UserID returns the ID of the seeded user with email
func (g *Gateway) UserID(t *testing.T, email string) string {
	t.Helper()

	var u models.User
	require.NoError(t, g.Dev.GetDB().Where("email = ?", email).First(&u).Error)
	return u.ID
}

// SetPermissions replaces a user's grants through the admin endpoint
func (g *Gateway) SetPermissions(t *testing.T, email string, perms ...string) {
	t.Helper()

	adminToken := g.login(t, AdminEmail)

	body, err := json.Marshal(map[string][]string{"permissions": perms})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPut, g.URL+"/users/"+g.UserID(t, email)+"/permissions", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken)

	resp, err := g.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func (g *Gateway) login(t *testing.T, email string) string {
	t.Helper()

	body, err := json.Marshal(map[string]string{"email": email, "password": Password})
	require.NoError(t, err)

	resp, err := g.Client().Post(g.URL+"/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out.Token
}
