package e2e

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/cli"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/cli/userconfig"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/tests/e2e/testhelpers"
)

// setupCLI points storectl at gw with a file-backed token store under a
// temporary home and working directory.
func setupCLI(t *testing.T, gatewayURL string) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("STORECTL_API_URL", gatewayURL)
	t.Setenv("STORECTL_TOKEN_BACKEND", "file")
	t.Setenv("STORECTL_TOKEN_FILE", filepath.Join(home, "token.db"))
	t.Setenv("STORECTL_SYNC_DELAY", "1h")
	t.Setenv("STORECTL_EMAIL", "")
	t.Setenv("STORECTL_PASSWORD", "")
	t.Setenv("LOG_LEVEL", "disabled")
	t.Chdir(t.TempDir())

	return home
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := cli.NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(bytes.NewReader(nil))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_SessionLifecycle(t *testing.T) {
	gw := testhelpers.StartGateway(t)
	setupCLI(t, gw.URL)

	_, err := runCLI(t, "whoami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storectl login")

	out, err := runCLI(t, "login", "--email", testhelpers.StaffEmail, "--password", testhelpers.Password)
	require.NoError(t, err)
	assert.Contains(t, out, "Login successful")

	// Every command below is a fresh process restoring the stored token
	out, err = runCLI(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, testhelpers.StaffEmail)
	assert.Contains(t, out, "sales:read")

	out, err = runCLI(t, "stores")
	require.NoError(t, err)
	assert.Contains(t, out, "Tienda Centro")
	assert.NotContains(t, out, "Tienda Norte")

	out, err = runCLI(t, "get", "sales")
	require.NoError(t, err)
	assert.Contains(t, out, "V-0001")

	// A single store is selected automatically
	selected, err := userconfig.GetSelectedStore()
	require.NoError(t, err)
	assert.Equal(t, gw.StoreID(t, "Tienda Centro"), selected)

	_, err = runCLI(t, "get", "products")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "you do not have permission to read products in Tienda Centro")

	out, err = runCLI(t, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out "+testhelpers.StaffEmail)

	selected, err = userconfig.GetSelectedStore()
	require.NoError(t, err)
	assert.Empty(t, selected)

	_, err = runCLI(t, "whoami")
	assert.Error(t, err)
}

func TestCLI_SyncPicksUpGrantedPermission(t *testing.T) {
	gw := testhelpers.StartGateway(t)
	setupCLI(t, gw.URL)

	_, err := runCLI(t, "login", "--email", testhelpers.StaffEmail, "--password", testhelpers.Password)
	require.NoError(t, err)

	out, err := runCLI(t, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "already up to date")

	gw.SetPermissions(t, testhelpers.StaffEmail, "sales:read", "products:read")

	// Boot already sees the new grants, so sync confirms them
	out, err = runCLI(t, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "products:read")

	out, err = runCLI(t, "get", "products")
	require.NoError(t, err)
	assert.Contains(t, out, "PAN-001")
}

func TestCLI_SelectStoreAndInit(t *testing.T) {
	gw := testhelpers.StartGateway(t)
	setupCLI(t, gw.URL)

	out, err := runCLI(t, "init", gw.URL)
	require.NoError(t, err)
	_, err = os.Stat("storectl.yaml")
	require.NoError(t, err, out)

	_, err = runCLI(t, "login", "--email", testhelpers.AdminEmail, "--password", testhelpers.Password)
	require.NoError(t, err)

	out, err = runCLI(t, "select-store", "Tienda Norte")
	require.NoError(t, err)
	assert.Contains(t, out, "Tienda Norte")

	out, err = runCLI(t, "stores")
	require.NoError(t, err)
	assert.Contains(t, out, "Tienda Centro")
	assert.Contains(t, out, "* ")

	out, err = runCLI(t, "get", "sales")
	require.NoError(t, err)
	assert.Contains(t, out, "V-1001")
	assert.NotContains(t, out, "V-0001")

	out, err = runCLI(t, "get", "sales", "--store", "Tienda Centro")
	require.NoError(t, err)
	assert.Contains(t, out, "V-0001")
}

func TestCLI_LoginRejectsBadPassword(t *testing.T) {
	gw := testhelpers.StartGateway(t)
	home := setupCLI(t, gw.URL)

	_, err := runCLI(t, "login", "--email", testhelpers.StaffEmail, "--password", "wrong")
	require.Error(t, err)

	_, err = runCLI(t, "whoami")
	assert.Error(t, err)

	// Nothing was persisted for the failed attempt
	_, err = os.Stat(filepath.Join(home, ".config", "storectl", "config.yaml"))
	assert.True(t, os.IsNotExist(err))
}

func TestCLI_Shell(t *testing.T) {
	gw := testhelpers.StartGateway(t)
	setupCLI(t, gw.URL)

	_, err := runCLI(t, "login", "--email", testhelpers.StaffEmail, "--password", testhelpers.Password)
	require.NoError(t, err)

	input := "get sales\ncache\nrefresh\nget products\nbogus\nlogout\n"

	var out bytes.Buffer
	cmd := cli.NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(bytes.NewBufferString(input))
	cmd.SetArgs([]string{"shell"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Using store Tienda Centro")
	assert.Contains(t, text, "V-0001")
	assert.Contains(t, text, "2 entries")
	assert.Contains(t, text, "Invalidated 1 entries for Tienda Centro")
	assert.Contains(t, text, "you do not have permission to read products")
	assert.Contains(t, text, `unknown command "bogus"`)
	assert.Contains(t, text, "Logged out "+testhelpers.StaffEmail)

	_, err = runCLI(t, "whoami")
	assert.Error(t, err)
}
