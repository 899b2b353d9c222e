// Package logger holds the process-wide structured logger used by every engine package.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the engine logger. It is a no-op logger until Init is called, so library use and tests stay silent.
var Log = zap.NewNop()

// Init replaces Log with a configured zap logger.
//
// Parameters:
//   - level: minimum level name ("debug", "info", "warn", "error")
//   - development: when true a human readable console encoder is used
//
// Returns:
//   - error: error if the level is unknown or the logger cannot be built
func Init(level string, development bool) error {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("failed to parse log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	Log = l
	return nil
}

// Named returns a child of Log scoped to a subsystem.
func Named(name string) *zap.Logger {
	return Log.Named(name)
}

// Sync flushes buffered log entries. Errors from syncing stdout/stderr are ignored.
func Sync() {
	_ = Log.Sync()
}
