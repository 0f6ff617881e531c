// Package watch synchronizes document files again each time they change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ubuntu/decorate"
	"github.com/ubuntu/docsync/internal/document"
	"github.com/ubuntu/docsync/internal/source"
)

// DefaultDebounce is the default quiet period after a change before synchronizing.
const DefaultDebounce = 250 * time.Millisecond

// ErrNoPath is returned when there is nothing to watch.
var ErrNoPath = errors.New("no path to watch")

// Syncer synchronizes a batch of changed document files, in name order.
type Syncer func(ctx context.Context, files []source.File)

// Watcher watches document files and directories.
type Watcher struct {
	// files are the watched document files, dirs the watched directories, all absolute.
	files map[string]bool
	dirs  map[string]bool

	sync     Syncer
	debounce time.Duration
	log      *slog.Logger

	ready func()
}

type options struct {
	logger   *slog.Logger
	debounce time.Duration
	ready    func()
}

// Options represents an optional function to override Watcher default values.
type Options func(*options)

// WithLogger sets the logger used by the watcher.
func WithLogger(l *slog.Logger) Options {
	return func(o *options) {
		o.logger = l
	}
}

// WithDebounce sets how long to wait for changes to settle before synchronizing.
func WithDebounce(d time.Duration) Options {
	return func(o *options) {
		o.debounce = d
	}
}

// WithReady sets a function called once every path is watched, before any change is reported.
func WithReady(f func()) Options {
	return func(o *options) {
		o.ready = f
	}
}

// New returns a Watcher calling sync with the files changed under paths.
// Paths can be document files or directories, which are watched non-recursively.
func New(paths []string, sync Syncer, args ...Options) (w *Watcher, err error) {
	defer decorate.OnError(&err, "could not watch paths")

	if len(paths) == 0 {
		return nil, ErrNoPath
	}

	opts := options{
		logger:   slog.Default(),
		debounce: DefaultDebounce,
		ready:    func() {},
	}
	for _, opt := range args {
		opt(&opts)
	}

	w = &Watcher{
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		sync:     sync,
		debounce: opts.debounce,
		log:      opts.logger,
		ready:    opts.ready,
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			w.dirs[abs] = true
			continue
		}
		w.files[abs] = true
	}

	return w, nil
}

// Run watches until ctx is done. Changes are accumulated until no new change happens for the debounce period,
// then synchronized together. Run returns nil once ctx is done, or an error if watching failed.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %v", err)
	}
	defer watcher.Close()

	// Files are watched through their directory, to follow editors replacing them.
	watched := make(map[string]bool)
	for dir := range w.dirs {
		watched[dir] = true
	}
	for f := range w.files {
		watched[filepath.Dir(f)] = true
	}
	for dir := range watched {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to add directory %s to watcher: %v", dir, err)
		}
		w.log.Info("Watching directory", "dir", dir)
	}
	w.ready()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed unexpectedly")
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !w.concerns(event.Name) {
				continue
			}
			w.log.Debug("Document file changed", "file", event.Name, "op", event.Op)
			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)

		case <-timer.C:
			w.flush(ctx, pending)
			clear(pending)

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed unexpectedly")
			}
			w.log.Warn("Watcher error", "error", err)
		}
	}
}

// concerns returns true if path is a watched file, or a document file in a watched directory.
func (w *Watcher) concerns(path string) bool {
	if w.files[path] {
		return true
	}
	if !w.dirs[filepath.Dir(path)] {
		return false
	}
	_, ok := document.SyntaxForFile(path)
	return ok
}

func (w *Watcher) flush(ctx context.Context, pending map[string]struct{}) {
	var paths []string
	for p := range pending {
		// Only regular files still present are synchronized.
		if info, err := os.Stat(p); err != nil || !info.Mode().IsRegular() {
			w.log.Debug("Ignoring change of a file which is gone", "file", p)
			continue
		}
		paths = append(paths, p)
	}
	if len(paths) == 0 {
		return
	}
	slices.Sort(paths)

	files, err := source.Files(paths, source.WithLogger(w.log))
	if err != nil {
		w.log.Warn("Could not list changed files", "error", err)
		return
	}
	if len(files) == 0 {
		return
	}

	w.log.Info("Synchronizing changed files", "count", len(files))
	w.sync(ctx, files)
}
