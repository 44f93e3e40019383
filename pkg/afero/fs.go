// Package afero holds the filesystem helpers sft-agent layers on top of
// spf13/afero so that every file it reads or writes can be swapped for an
// in-memory filesystem in tests.
package afero

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/sgl-project/sft-agent/pkg/logging"
)

// AtomicWriteFile replaces path with data. Unchanged contents only get their
// mode refreshed. Otherwise the data goes to a sibling temp file first and is
// renamed over path, so readers never observe a half written file.
func AtomicWriteFile(fs afero.Fs, path string, data []byte, perm os.FileMode, log logging.Interface) error {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	if old, err := afero.ReadFile(fs, path); err == nil && bytes.Equal(old, data) {
		return fs.Chmod(path, perm)
	}

	log.WithField("path", path).WithField("bytes", len(data)).Debug("Writing file")

	if renameUnsupported(fs) {
		return afero.WriteFile(fs, path, data, perm)
	}

	tmp, err := afero.TempFile(fs, dir, "."+name+"~")
	if err != nil {
		return fmt.Errorf("creating tmp file for atomic write: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = fs.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing tmp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing tmp file: %w", err)
	}
	if err := fs.Chmod(tmpName, perm); err != nil {
		return err
	}
	return fs.Rename(tmpName, path)
}

// MemMapFs renames are not atomic and lose file modes; write in place there.
func renameUnsupported(fs afero.Fs) bool {
	_, ok := fs.(*afero.MemMapFs)
	return ok
}

// Exists reports whether path exists.
func Exists(fs afero.Fs, path string) (bool, error) {
	return afero.Exists(fs, path)
}

// DirContains reports whether dir holds a regular file called name.
func DirContains(fs afero.Fs, dir, name string) (bool, error) {
	info, err := fs.Stat(filepath.Join(dir, name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}
