package cli

import (
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/ubuntu/docsync/internal/constants"
	"gopkg.in/natefinch/lumberjack.v2"
)

// stderrLogger is the default logger at startup, writing to the standard error through the log package.
var stderrLogger = slog.Default()

// SetVerbosity sets the logging level for the default logger based on the verbose flag count.
//
// This function has the same behaviors as slog.SetLogLoggerLevel.
func SetVerbosity(level int) {
	slog.SetLogLoggerLevel(getLevel(level))
}

// SetSlog sets the logging level and format for the default logger.
// Logs go to w. When w is nil or os.Stderr and the text format is used, the startup default handler is
// restored, even after logs were redirected elsewhere.
func SetSlog(level int, jsonLogs bool, w io.Writer) {
	slogLevel := getLevel(level)
	if w == nil {
		w = os.Stderr
	}

	if jsonLogs {
		slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevel})))
		return
	}
	if w != os.Stderr {
		slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slogLevel})))
		return
	}

	// The log package output was redirected to the previous handler by slog.SetDefault.
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags)
	slog.SetDefault(stderrLogger)
	SetVerbosity(level)
}

// NewLogFile returns a writer to path, rotated once it grows over constants.LogFileMaxSize megabytes.
func NewLogFile(path string) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    constants.LogFileMaxSize,
		MaxBackups: constants.LogFileMaxBackups,
		MaxAge:     constants.LogFileMaxAge,
	}
}

func getLevel(level int) slog.Level {
	switch level {
	case 0:
		return constants.DefaultLogLevel
	case 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
