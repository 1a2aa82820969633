package debug

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for the debug log.
const (
	maxSizeMB  = 5
	maxBackups = 3
	maxAgeDays = 7
)

// Open returns a rotating writer for the debug log at path.
func Open(path string) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}
}

// NewHandler returns a handler that writes every record, debug included, to
// w as JSON lines.
func NewHandler(w io.Writer) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
}
