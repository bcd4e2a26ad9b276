package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("MONGOPROV_TEST_ENV_VALUE=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("MONGOPROV_TEST_ENV_VALUE") })

	loaded, err := LoadEnv(filepath.Join(dir, "missing.env"), path)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, loaded)
	assert.Equal(t, "from-file", os.Getenv("MONGOPROV_TEST_ENV_VALUE"))
}

func TestLoadEnvKeepsExistingVariables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("MONGOPROV_TEST_ENV_KEEP=from-file\n"), 0o600))
	t.Setenv("MONGOPROV_TEST_ENV_KEEP", "from-process")

	_, err := LoadEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "from-process", os.Getenv("MONGOPROV_TEST_ENV_KEEP"))
}
