package passphrase

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetPrefersSecretFileOverEnvVar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "passphrase")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))

	t.Setenv("ACTIONCODES_TEST_PASSPHRASE_FILE", path)
	t.Setenv("ACTIONCODES_TEST_PASSPHRASE", "from-env")

	source := NewSource("ACTIONCODES_TEST_PASSPHRASE")
	value, err := source.Get()
	require.NoError(t, err)
	require.Equal(t, "from-file", value)
}

func TestGetFallsBackToEnvVarWhenNoFileConfigured(t *testing.T) {
	t.Setenv("ACTIONCODES_TEST_PASSPHRASE", "from-env")

	source := NewSource("ACTIONCODES_TEST_PASSPHRASE")
	value, err := source.Get()
	require.NoError(t, err)
	require.Equal(t, "from-env", value)
}

func TestGetRejectsEmptySecretFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "passphrase")
	require.NoError(t, os.WriteFile(path, []byte("   \n"), 0o600))

	t.Setenv("ACTIONCODES_TEST_PASSPHRASE_FILE", path)

	source := NewSource("ACTIONCODES_TEST_PASSPHRASE")
	_, err := source.Get()
	require.Error(t, err)
}

func TestGetRejectsEmptyEnvVar(t *testing.T) {
	t.Setenv("ACTIONCODES_TEST_PASSPHRASE", "")

	source := NewSource("ACTIONCODES_TEST_PASSPHRASE")
	_, err := source.Get()
	require.Error(t, err)
}

func TestGetCachesResolvedValue(t *testing.T) {
	t.Setenv("ACTIONCODES_TEST_PASSPHRASE", "from-env")

	source := NewSource("ACTIONCODES_TEST_PASSPHRASE")
	first, err := source.Get()
	require.NoError(t, err)

	t.Setenv("ACTIONCODES_TEST_PASSPHRASE", "changed")
	second, err := source.Get()
	require.NoError(t, err)
	require.Equal(t, first, second)
}

