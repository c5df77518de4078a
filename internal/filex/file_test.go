package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic_CreatesDirAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")

	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o600))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "one", string(got))

	if runtime.GOOS != "windows" {
		fi, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

		di, err := os.Stat(filepath.Dir(path))
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o700), di.Mode().Perm()&0o700)
	}
}

func TestWriteFileAtomic_Replaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.json")

	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o600))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0o600))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "two", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestWriteFileAtomic_FailsIfParentIsFile(t *testing.T) {
	tmp := t.TempDir()
	parent := filepath.Join(tmp, "file")
	require.NoError(t, os.WriteFile(parent, []byte("x"), 0o600))

	err := WriteFileAtomic(filepath.Join(parent, "tokens.json"), []byte("y"), 0o600)
	require.Error(t, err)
}
