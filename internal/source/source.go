// Package source discovers document files and reads them into input units.
package source

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ubuntu/decorate"
	"github.com/ubuntu/docsync/internal/document"
	"github.com/ubuntu/docsync/internal/fileutils"
)

// ErrNoPath is returned when Discover is called without any path.
var ErrNoPath = errors.New("no path to discover documents from")

// Unit is one input file to synchronize.
type Unit struct {
	Name   string
	Data   []byte
	Syntax document.Syntax
	// Err is set when the file could not be read.
	Err error
}

// File is a document file found by Files.
type File struct {
	Path   string
	Syntax document.Syntax
}

type options struct {
	logger *slog.Logger

	// Private members exported for tests.
	executable func() (string, error)
	readFile   func(string) ([]byte, error)
}

// Options represents an optional function to override discovery default values.
type Options func(*options)

// WithLogger sets the logger used to report skipped files.
func WithLogger(l *slog.Logger) Options {
	return func(o *options) {
		o.logger = l
	}
}

func newOptions(args []Options) options {
	opts := options{
		logger:     slog.Default(),
		executable: os.Executable,
		readFile:   os.ReadFile,
	}
	for _, opt := range args {
		opt(&opts)
	}
	return opts
}

// Discover returns the input units of the document files designated by paths, in order.
// Files are read lazily, when the sequence is iterated.
func Discover(paths []string, args ...Options) (iter.Seq[Unit], error) {
	files, err := Files(paths, args...)
	if err != nil {
		return nil, err
	}
	return Units(files, args...), nil
}

// Files returns the document files designated by paths.
//
// A path can be a file or a directory. Directories are not recursed into, and their files
// come in name order. Files with an unknown extension, and the running executable, are skipped.
// A path which does not exist is an error.
func Files(paths []string, args ...Options) (files []File, err error) {
	defer decorate.OnError(&err, "could not discover document files")

	if len(paths) == 0 {
		return nil, ErrNoPath
	}
	opts := newOptions(args)

	self, err := opts.executable()
	if err != nil {
		opts.logger.Debug("Could not locate running executable, not skipping it", "error", err)
		self = ""
	}

	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, err
		}

		if !fi.IsDir() {
			if f, ok := opts.candidate(p, self); ok {
				files = append(files, f)
			}
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			path := filepath.Join(p, e.Name())
			if e.IsDir() {
				opts.logger.Debug("Skipping directory", "path", path)
				continue
			}
			if f, ok := opts.candidate(path, self); ok {
				files = append(files, f)
			}
		}
	}

	return files, nil
}

// candidate returns the document file at path if it has to be processed.
func (o options) candidate(path, self string) (File, bool) {
	syntax, ok := document.SyntaxForFile(path)
	if !ok {
		o.logger.Info("Skipping file with unsupported extension", "path", path)
		return File{}, false
	}
	if self != "" && fileutils.SameFile(path, self) {
		o.logger.Info("Skipping running executable", "path", path)
		return File{}, false
	}
	return File{Path: path, Syntax: syntax}, true
}

// Units returns a sequence reading files into input units, in order.
func Units(files []File, args ...Options) iter.Seq[Unit] {
	opts := newOptions(args)

	return func(yield func(Unit) bool) {
		for _, f := range files {
			if !yield(opts.read(f)) {
				return
			}
		}
	}
}

// Read reads a single document file into an input unit.
func Read(f File, args ...Options) Unit {
	return newOptions(args).read(f)
}

func (o options) read(f File) Unit {
	u := Unit{Name: f.Path, Syntax: f.Syntax}
	data, err := o.readFile(f.Path)
	if err != nil {
		o.logger.Warn("Could not read document file", "path", f.Path, "error", err)
		u.Err = fmt.Errorf("could not read file: %w", err)
		return u
	}
	u.Data = data
	return u
}
