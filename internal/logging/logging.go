// Package logging sets up the process-wide structured logger. It follows
// the app tree's log/slog convention rather than introducing a third-party
// logging library, and extends slog with the one level (TRACE) the scripted
// extractor's host API needs beyond slog's own four.
package logging

import (
	"context"
	"log/slog"
	"os"
)

// LevelTrace sits one step below slog.LevelDebug, the documented pattern
// for adding a custom level to slog.
const LevelTrace = slog.LevelDebug - 4

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
}

// New builds the process logger, writing leveled, human-readable text to
// stderr. verbose lowers the minimum level to TRACE; otherwise INFO.
func New(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = LevelTrace
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				level := a.Value.Any().(slog.Level)
				if name, ok := levelNames[level]; ok {
					a.Value = slog.StringValue(name)
				}
			}
			return a
		},
	})
	return slog.New(handler)
}

// Trace logs at LevelTrace, the level below slog's own Debug.
func Trace(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelTrace, msg, args...)
}
