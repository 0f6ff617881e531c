package source_test

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ubuntu/docsync/internal/document"
	"github.com/ubuntu/docsync/internal/source"
	"github.com/ubuntu/docsync/internal/testutils"
)

var docs = map[string]string{
	"b.py":            `{'_id': 'b'}`,
	"a.json":          `{"_id": "a"}`,
	"c.js":            `[{"_id": "c"}]`,
	"notes.txt":       "not a document",
	"sub/nested.json": `{"_id": "nested"}`,
	"docsync.py":      "# pretend to be the running executable",
}

func TestFiles(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		paths      []string
		executable string
		execErr    bool

		want    []source.File
		wantErr error
	}{
		"Directory files in name order": {
			paths: []string{"."},
			want: []source.File{
				{Path: "a.json", Syntax: document.SyntaxJSON},
				{Path: "b.py", Syntax: document.SyntaxNativeLiteral},
				{Path: "c.js", Syntax: document.SyntaxJSON},
				{Path: "docsync.py", Syntax: document.SyntaxNativeLiteral},
			},
		},
		"Running executable is skipped": {
			paths:      []string{"."},
			executable: "docsync.py",
			want: []source.File{
				{Path: "a.json", Syntax: document.SyntaxJSON},
				{Path: "b.py", Syntax: document.SyntaxNativeLiteral},
				{Path: "c.js", Syntax: document.SyntaxJSON},
			},
		},
		"Unknown executable skips nothing": {
			paths:   []string{"b.py"},
			execErr: true,
			want:    []source.File{{Path: "b.py", Syntax: document.SyntaxNativeLiteral}},
		},
		"Files keep the given order": {
			paths: []string{"c.js", "a.json", "b.py"},
			want: []source.File{
				{Path: "c.js", Syntax: document.SyntaxJSON},
				{Path: "a.json", Syntax: document.SyntaxJSON},
				{Path: "b.py", Syntax: document.SyntaxNativeLiteral},
			},
		},
		"Files and directories are mixed": {
			paths: []string{"b.py", "sub"},
			want: []source.File{
				{Path: "b.py", Syntax: document.SyntaxNativeLiteral},
				{Path: filepath.Join("sub", "nested.json"), Syntax: document.SyntaxJSON},
			},
		},
		"Unsupported file is skipped": {
			paths: []string{"notes.txt"},
		},

		"Error on missing path": {paths: []string{"a.json", "missing"}, wantErr: fs.ErrNotExist},
		"Error on no path":      {wantErr: source.ErrNoPath},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			testutils.WriteFiles(t, dir, docs)

			var paths []string
			for _, p := range tc.paths {
				paths = append(paths, filepath.Join(dir, p))
			}
			exe := func() (string, error) {
				if tc.execErr {
					return "", errors.New("no executable")
				}
				if tc.executable == "" {
					return filepath.Join(dir, "does-not-exist"), nil
				}
				return filepath.Join(dir, tc.executable), nil
			}

			got, err := source.Files(paths, source.WithExecutable(exe))
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)

			var want []source.File
			for _, f := range tc.want {
				want = append(want, source.File{Path: filepath.Join(dir, f.Path), Syntax: f.Syntax})
			}
			require.Equal(t, want, got)
		})
	}
}

func TestFilesLogsSkippedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutils.WriteFiles(t, dir, map[string]string{"a.json": "{}", "b.txt": "", "c.md": ""})

	h := testutils.NewMockHandler(slog.LevelInfo)
	_, err := source.Files([]string{dir}, source.WithLogger(slog.New(h)))
	require.NoError(t, err)

	h.AssertRecords(t, []testutils.ExpectedRecord{
		{Level: slog.LevelInfo, Message: "Skipping file with unsupported extension"},
		{Level: slog.LevelInfo, Message: "Skipping file with unsupported extension"},
	})
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutils.WriteFiles(t, dir, docs)

	readErr := &fs.PathError{Op: "open", Path: "b.py", Err: fs.ErrPermission}
	readFile := func(path string) ([]byte, error) {
		if filepath.Base(path) == "b.py" {
			return nil, readErr
		}
		return os.ReadFile(path)
	}

	units, err := source.Discover([]string{dir}, source.WithReadFile(readFile), source.WithExecutable(os.Executable))
	require.NoError(t, err)

	got := slices.Collect(units)
	require.Len(t, got, 4, "Discover should return one unit per document file")

	require.Equal(t, source.Unit{Name: filepath.Join(dir, "a.json"), Data: []byte(`{"_id": "a"}`), Syntax: document.SyntaxJSON}, got[0])

	require.Equal(t, filepath.Join(dir, "b.py"), got[1].Name)
	require.Equal(t, document.SyntaxNativeLiteral, got[1].Syntax)
	require.Nil(t, got[1].Data, "Unreadable file should have no data")
	require.ErrorIs(t, got[1].Err, fs.ErrPermission, "Unreadable file should carry its read error")

	require.Equal(t, filepath.Join(dir, "c.js"), got[2].Name)
	require.NoError(t, got[2].Err)
}

func TestUnitsAreReadLazily(t *testing.T) {
	t.Parallel()

	var reads []string
	readFile := func(path string) ([]byte, error) {
		reads = append(reads, path)
		return []byte("{}"), nil
	}
	files := []source.File{{Path: "1.json"}, {Path: "2.json"}, {Path: "3.json"}}

	for u := range source.Units(files, source.WithReadFile(readFile)) {
		if u.Name == "2.json" {
			break
		}
	}
	require.Equal(t, []string{"1.json", "2.json"}, reads, "Units should only read files which are iterated over")
}

func TestReadUnreadableFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "secret.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0600), "Setup: could not write file")
	testutils.MakeUnreadable(t, path)

	got := source.Read(source.File{Path: path, Syntax: document.SyntaxJSON})
	require.ErrorIs(t, got.Err, fs.ErrPermission)
	require.Equal(t, path, got.Name)
}
