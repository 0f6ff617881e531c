package watch_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ubuntu/docsync/internal/document"
	"github.com/ubuntu/docsync/internal/source"
	"github.com/ubuntu/docsync/internal/testutils"
	"github.com/ubuntu/docsync/internal/watch"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		paths []string

		wantErr error
	}{
		"Directory":          {paths: []string{"."}},
		"File and directory": {paths: []string{"a.json", "."}},

		"Error on no path":      {wantErr: watch.ErrNoPath},
		"Error on missing path": {paths: []string{"missing"}, wantErr: fs.ErrNotExist},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			testutils.WriteFiles(t, dir, map[string]string{"a.json": "{}"})

			var paths []string
			for _, p := range tc.paths {
				paths = append(paths, filepath.Join(dir, p))
			}

			w, err := watch.New(paths, func(context.Context, []source.File) {})
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, w)
		})
	}
}

func TestRun(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		watched []string
		changes map[string]string

		want []string
	}{
		"Changed document in watched directory": {
			watched: []string{"."},
			changes: map[string]string{"a.json": `{"_id": "a"}`},
			want:    []string{"a.json"},
		},
		"Changes are synchronized together in name order": {
			watched: []string{"."},
			changes: map[string]string{"new.py": `{'_id': 'new'}`, "a.json": `{"_id": "a"}`, "b.js": "[]"},
			want:    []string{"a.json", "b.js", "new.py"},
		},
		"Unsupported and nested files are ignored": {
			watched: []string{"."},
			changes: map[string]string{"notes.txt": "hello", "sub/nested.json": "{}", "a.json": "{}"},
			want:    []string{"a.json"},
		},
		"Only the watched file of a directory is synchronized": {
			watched: []string{"a.json"},
			changes: map[string]string{"other.json": "{}", "a.json": "{}"},
			want:    []string{"a.json"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			testutils.WriteFiles(t, dir, map[string]string{"a.json": "{}", "sub/.keep": ""})

			var paths []string
			for _, p := range tc.watched {
				paths = append(paths, filepath.Join(dir, p))
			}

			batches := make(chan []source.File, 10)
			ready := make(chan struct{})
			w, err := watch.New(paths, func(_ context.Context, files []source.File) { batches <- files },
				watch.WithDebounce(200*time.Millisecond), watch.WithReady(func() { close(ready) }))
			require.NoError(t, err, "Setup: New should not fail")

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- w.Run(ctx) }()

			select {
			case <-ready:
			case err := <-done:
				require.Fail(t, "Run returned before watching", "error: %v", err)
			case <-time.After(5 * time.Second):
				require.Fail(t, "Watcher was never ready")
			}

			testutils.WriteFiles(t, dir, tc.changes)

			var got []source.File
			select {
			case got = <-batches:
			case <-time.After(5 * time.Second):
				require.Fail(t, "Changes were never synchronized")
			}

			var want []source.File
			for _, name := range tc.want {
				syntax, ok := document.SyntaxForFile(name)
				require.True(t, ok, "Setup: unexpected document extension")
				want = append(want, source.File{Path: filepath.Join(dir, name), Syntax: syntax})
			}
			require.Equal(t, want, got, "Changed files should be synchronized in a single batch")

			cancel()
			select {
			case err := <-done:
				require.NoError(t, err, "Run should stop cleanly once canceled")
			case <-time.After(5 * time.Second):
				require.Fail(t, "Run did not stop once canceled")
			}
			require.Empty(t, batches, "No other batch should be synchronized")
		})
	}
}

func TestRunRemovedFileIsNotSynchronized(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	batches := make(chan []source.File, 10)
	ready := make(chan struct{})
	w, err := watch.New([]string{dir}, func(_ context.Context, files []source.File) { batches <- files },
		watch.WithDebounce(200*time.Millisecond), watch.WithReady(func() { close(ready) }))
	require.NoError(t, err, "Setup: New should not fail")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	<-ready

	path := filepath.Join(dir, "short-lived.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0600), "Setup: could not write file")
	require.NoError(t, os.Remove(path), "Setup: could not remove file")

	select {
	case got := <-batches:
		require.Fail(t, "Removed file should not be synchronized", "got %v", got)
	case <-time.After(time.Second):
	}
}
