package afero

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgl-project/sft-agent/pkg/logging"
)

func TestAtomicWriteFile_OsFs(t *testing.T) {
	fs := afero.NewOsFs()
	path := filepath.Join(t.TempDir(), "data", "train.jsonl")

	require.NoError(t, AtomicWriteFile(fs, path, []byte("one\n"), 0o640, logging.Discard()))
	got, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "one\n", string(got))

	require.NoError(t, AtomicWriteFile(fs, path, []byte("two\n"), 0o640, logging.Discard()))
	got, err = afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "two\n", string(got))

	info, err := fs.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	entries, err := afero.ReadDir(fs, filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be cleaned up")
}

func TestAtomicWriteFile_Unchanged(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/report.json", []byte("{}"), 0o600))

	require.NoError(t, AtomicWriteFile(fs, "/report.json", []byte("{}"), 0o644, logging.Discard()))
	info, err := fs.Stat("/report.json")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestDirContains(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/model/sub", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/model/config.json", []byte("{}"), 0o644))

	ok, err := DirContains(fs, "/model", "config.json")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = DirContains(fs, "/model", "adapter_config.json")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = DirContains(fs, "/model", "sub")
	require.NoError(t, err)
	assert.False(t, ok, "directories are not files")

	exists, err := Exists(fs, "/model/sub")
	require.NoError(t, err)
	assert.True(t, exists)
}
