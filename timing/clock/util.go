package clock

import (
	"context"
	"log/slog"
)

// LevelTrace is the slog level used for per-edge bus tracing. It sits below
// debug so traces only show when asked for.
const LevelTrace slog.Level = slog.LevelDebug - 4

// Trace logs msg at LevelTrace through the default logger.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}
