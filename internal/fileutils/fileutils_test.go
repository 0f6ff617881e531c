package fileutils_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ubuntu/docsync/internal/fileutils"
)

func TestAtomicWrite(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		data            []byte
		fileExists      bool
		fileExistsPerms os.FileMode
		missingParent   bool
		parentIsFile    bool

		wantError bool
	}{
		"Empty file":          {data: []byte{}},
		"Non-empty file":      {data: []byte("data")},
		"Override file":       {data: []byte("data"), fileExistsPerms: 0600, fileExists: true},
		"Override empty file": {data: []byte{}, fileExistsPerms: 0600, fileExists: true},
		"Missing parent":      {data: []byte("data"), missingParent: true},

		"Override read-only file": {data: []byte("data"), fileExistsPerms: 0400, fileExists: true, wantError: runtime.GOOS == "windows"},
		"Override No Perms file":  {data: []byte("data"), fileExistsPerms: 0000, fileExists: true, wantError: runtime.GOOS == "windows"},
		"Parent is a file":        {data: []byte("data"), parentIsFile: true, wantError: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			oldFile := []byte("Old File!")
			tempDir := t.TempDir()
			path := filepath.Join(tempDir, "summary.json")
			if tc.missingParent {
				path = filepath.Join(tempDir, "a", "b", "summary.json")
			}
			if tc.parentIsFile {
				require.NoError(t, os.WriteFile(filepath.Join(tempDir, "file"), oldFile, 0600), "Setup: WriteFile should not return an error")
				path = filepath.Join(tempDir, "file", "summary.json")
			}

			if tc.fileExists {
				err := os.WriteFile(path, oldFile, tc.fileExistsPerms)
				require.NoError(t, err, "Setup: WriteFile should not return an error")
				t.Cleanup(func() { _ = os.Chmod(path, 0600) })
			}

			err := fileutils.AtomicWrite(path, tc.data)
			if tc.wantError {
				require.Error(t, err, "AtomicWrite should return an error")

				if !tc.fileExists {
					return
				}
				data, err := os.ReadFile(path)
				require.NoError(t, err, "ReadFile should not return an error")
				require.Equal(t, oldFile, data, "AtomicWrite should not overwrite the file")
				return
			}
			require.NoError(t, err, "AtomicWrite should not return an error")

			data, err := os.ReadFile(path)
			require.NoError(t, err, "ReadFile should not return an error")
			require.Equal(t, tc.data, data, "AtomicWrite should write the data to the file")

			entries, err := os.ReadDir(filepath.Dir(path))
			require.NoError(t, err, "ReadDir should not return an error")
			require.Len(t, entries, 1, "AtomicWrite should not leave temporary files behind")
		})
	}
}

func TestSameFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0600), "Setup: WriteFile should not return an error")
	require.NoError(t, os.WriteFile(b, []byte("a"), 0600), "Setup: WriteFile should not return an error")

	require.True(t, fileutils.SameFile(a, a), "A file should be the same as itself")
	require.True(t, fileutils.SameFile(a, filepath.Join(dir, ".", "a")), "Different paths to a file should be the same file")
	require.False(t, fileutils.SameFile(a, b), "Files with the same content should not be the same file")
	require.False(t, fileutils.SameFile(a, filepath.Join(dir, "missing")), "A missing file should never match")
	require.False(t, fileutils.SameFile(filepath.Join(dir, "missing"), filepath.Join(dir, "missing")), "Missing files should never match")
}
