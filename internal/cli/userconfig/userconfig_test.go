package userconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectedStore(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	id, err := GetSelectedStore()
	require.NoError(t, err)
	assert.Empty(t, id, "no file yet")

	require.NoError(t, SetSelectedStore("s2"))

	id, err = GetSelectedStore()
	require.NoError(t, err)
	assert.Equal(t, "s2", id)

	data, err := os.ReadFile(filepath.Join(home, ".config", "storectl", "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "selected_store_id: s2")

	require.NoError(t, SetSelectedStore(""))
	id, err = GetSelectedStore()
	require.NoError(t, err)
	assert.Empty(t, id)
}
