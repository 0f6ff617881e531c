// Package constants is responsible for defining the constants used in the application.
// It also provides utility functions to get the default configuration paths.
package constants

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const (
	// CmdName is the name of the command line tool.
	CmdName = "docsync"

	// DefaultAppFolder is the name of the default root folder.
	DefaultAppFolder = "docsync"

	// DefaultLogLevel is the default log level selected without any verbosity flags.
	DefaultLogLevel = slog.LevelWarn

	// DefaultHost is the default document store host.
	DefaultHost = "localhost"

	// DefaultPort is the default document store port.
	DefaultPort = 5984

	// DefaultDelay is the default pause between two dispatched input units.
	DefaultDelay = 100 * time.Millisecond

	// DefaultResponseTimeout is the default time to wait for a response from the document store.
	DefaultResponseTimeout = 10 * time.Second

	// DefaultWorkers is the default number of input units dispatched concurrently.
	DefaultWorkers = 1

	// IDField is the document field holding the document identifier.
	IDField = "_id"

	// BulkDocsEndpoint is the database endpoint accepting batches of documents.
	BulkDocsEndpoint = "_bulk_docs"

	// BulkDocsField is the field wrapping the documents of a batch.
	BulkDocsField = "docs"

	// LogFileMaxSize is the size in megabytes after which the log file is rotated.
	LogFileMaxSize = 10
	// LogFileMaxBackups is the number of rotated log files kept.
	LogFileMaxBackups = 3
	// LogFileMaxAge is the number of days rotated log files are kept.
	LogFileMaxAge = 28
)

var (
	// Version is the version of the executable. Overridden at link time.
	Version = "Dev"
)

type options struct {
	baseDir func() (string, error)
}

type option func(*options)

// GetDefaultConfigPath is the default path to the configuration directory.
func GetDefaultConfigPath(opts ...option) string {
	o := options{baseDir: os.UserConfigDir}
	for _, opt := range opts {
		opt(&o)
	}

	return filepath.Join(getBaseDir(o.baseDir), DefaultAppFolder)
}

// getBaseDir is a helper function to handle the case where the baseDir function returns an error, and instead return an empty string.
func getBaseDir(baseDirFunc func() (string, error)) string {
	dir, err := baseDirFunc()
	if err != nil {
		return ""
	}
	return dir
}
