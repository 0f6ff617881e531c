// TiCS: disabled // Test helpers.

package testutils

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteFiles creates files under dir from a map of slash separated relative paths to contents.
func WriteFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750), "Setup: could not create parent directory of %s", name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0600), "Setup: could not write %s", name)
	}
}

// GetDirContents returns the contents of a directory as a map of file paths to file contents.
// The contents are read as strings.
// The maxDepth parameter limits the depth of the directory tree to read.
func GetDirContents(t *testing.T, dir string, maxDepth uint) (map[string]string, error) {
	t.Helper()

	files := make(map[string]string)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if path == dir {
			return nil
		}

		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		depth := uint(strings.Count(filepath.ToSlash(relPath), "/") + 1)
		if depth > maxDepth {
			return fmt.Errorf("max depth %d exceeded at %s", maxDepth, relPath)
		}

		if !d.IsDir() {
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			// Normalize content between Windows and Linux
			content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
			files[filepath.ToSlash(relPath)] = string(content)
		}

		return nil
	})

	return files, err
}

// MakeUnreadable removes all permissions from dest and restores them on cleanup.
// The test is skipped where permissions cannot deny reading: on Windows, or as root.
func MakeUnreadable(t *testing.T, dest string) {
	t.Helper()

	if runtime.GOOS == "windows" || os.Getuid() == 0 {
		t.Skip("Skipping test: permissions cannot deny reading on this platform or as root")
	}

	fi, err := os.Stat(dest)
	require.NoError(t, err, "Setup: cannot stat %s", dest)
	mode := fi.Mode()

	require.NoError(t, os.Chmod(dest, 0), "Setup: cannot change permissions of %s", dest)

	t.Cleanup(func() {
		if _, err := os.Stat(dest); errors.Is(err, os.ErrNotExist) {
			return
		}
		require.NoError(t, os.Chmod(dest, mode), "Cleanup: cannot restore permissions of %s", dest)
	})
}
