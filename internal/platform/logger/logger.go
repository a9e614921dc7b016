package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. JSON output keeps log aggregation simple.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
