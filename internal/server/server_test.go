package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/config"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/models"
)

const (
	adminEmail = "ana@santateresa.pe"
	staffEmail = "luis@santateresa.pe"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	srv, err := New(config.DevGatewayConfig{
		Addr:        "127.0.0.1:0",
		DatabaseURL: filepath.Join(t.TempDir(), "gateway.sqlite"),
		JWTSecret:   "test-secret-0123456789",
		TokenTTL:    time.Hour,
		Seed:        true,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	return srv
}

func do(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func loginAs(t *testing.T, srv *Server, email string) LoginResponse {
	t.Helper()

	w := do(t, srv, http.MethodPost, "/auth/login", "", LoginRequest{Email: email, Password: DemoPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func storeID(t *testing.T, srv *Server, name string) string {
	t.Helper()

	var st models.Store
	require.NoError(t, srv.GetDB().Where("name = ?", name).First(&st).Error)
	return st.ID
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "online")
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)

	resp := loginAs(t, srv, adminEmail)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, adminEmail, resp.User.Email)
	assert.Equal(t, "admin", resp.User.Role)
	assert.Len(t, resp.User.StoreIDs, 2)
	assert.Contains(t, resp.Permissions, "sales:read")
	assert.IsNonDecreasing(t, resp.Permissions)
}

func TestLogin_BadCredentials(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/auth/login", "", LoginRequest{Email: adminEmail, Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, srv, http.MethodPost, "/auth/login", "", LoginRequest{Email: "nobody@santateresa.pe", Password: DemoPassword})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, srv, http.MethodPost, "/auth/login", "", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthenticatedRoutes_RequireToken(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/auth/me", "/auth/permissions", "/stores"} {
		w := do(t, srv, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)

		w = do(t, srv, http.MethodGet, path, "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestMeAndPermissions(t *testing.T) {
	srv := newTestServer(t)
	login := loginAs(t, srv, staffEmail)

	w := do(t, srv, http.MethodGet, "/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var me MeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, staffEmail, me.User.Email)
	assert.Equal(t, []string{"sales:read"}, me.Permissions)

	w = do(t, srv, http.MethodGet, "/auth/permissions", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"permissions":["sales:read"]}`, w.Body.String())
}

func TestListStores_OnlyMemberStores(t *testing.T) {
	srv := newTestServer(t)
	login := loginAs(t, srv, staffEmail)

	w := do(t, srv, http.MethodGet, "/stores", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Stores []StoreResponse `json:"stores"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Stores, 1)
	assert.Equal(t, "Tienda Centro", resp.Stores[0].Name)
}

func TestGetStoreResource(t *testing.T) {
	srv := newTestServer(t)
	staff := loginAs(t, srv, staffEmail)
	centro := storeID(t, srv, "Tienda Centro")
	norte := storeID(t, srv, "Tienda Norte")

	t.Run("granted", func(t *testing.T) {
		w := do(t, srv, http.MethodGet, "/stores/"+centro+"/sales", staff.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var docs []map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &docs))
		assert.Len(t, docs, 2)
	})

	t.Run("missing permission", func(t *testing.T) {
		w := do(t, srv, http.MethodGet, "/stores/"+centro+"/products", staff.Token, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("not a member", func(t *testing.T) {
		w := do(t, srv, http.MethodGet, "/stores/"+norte+"/sales", staff.Token, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unknown store", func(t *testing.T) {
		w := do(t, srv, http.MethodGet, "/stores/nope/sales", staff.Token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("empty resource", func(t *testing.T) {
		admin := loginAs(t, srv, adminEmail)
		w := do(t, srv, http.MethodGet, "/stores/"+norte+"/inventory", admin.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})
}

func TestUpdateUserPermissions(t *testing.T) {
	srv := newTestServer(t)
	admin := loginAs(t, srv, adminEmail)
	staff := loginAs(t, srv, staffEmail)
	centro := storeID(t, srv, "Tienda Centro")

	path := "/users/" + staff.User.ID + "/permissions"

	// Staff cannot manage users
	w := do(t, srv, http.MethodPut, path, staff.Token, UpdatePermissionsRequest{Permissions: []string{"products:read"}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, srv, http.MethodPut, path, admin.Token, UpdatePermissionsRequest{Permissions: []string{"not a permission"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPut, "/users/unknown/permissions", admin.Token, UpdatePermissionsRequest{Permissions: []string{"sales:read"}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodPut, path, admin.Token, UpdatePermissionsRequest{
		Permissions: []string{"products:read", "sales:read", "products:read"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"permissions":["products:read","sales:read"]}`, w.Body.String())

	// The existing token sees the change immediately
	w = do(t, srv, http.MethodGet, "/stores/"+centro+"/products", staff.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodGet, "/auth/permissions", staff.Token, nil)
	assert.JSONEq(t, `{"permissions":["products:read","sales:read"]}`, w.Body.String())
}

func TestListUsers_AdminOnly(t *testing.T) {
	srv := newTestServer(t)
	admin := loginAs(t, srv, adminEmail)

	w := do(t, srv, http.MethodGet, "/users", admin.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var users []UserDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	assert.Len(t, users, 2)
}

func TestSeed_Idempotent(t *testing.T) {
	srv := newTestServer(t)

	require.NoError(t, Seed(srv.GetDB(), zerolog.Nop()))

	var count int64
	require.NoError(t, srv.GetDB().Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}
