// Package obs builds the *zap.Logger every other package receives by
// constructor injection, following the teacher's own convention
// (internal/decision and internal/vision take a *zap.Logger argument and log
// with typed fields such as zap.Error and zap.Duration).
package obs

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production zap logger at the given level ("debug", "info",
// "warn", "error"). An empty level defaults to "info".
func New(level string) (*zap.Logger, error) {
	if level == "" {
		level = "info"
	}

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("obs: invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("obs: build logger: %w", err)
	}
	return logger, nil
}

// NewNop returns a logger that discards everything, for tests and for
// callers that have not wired a real sink.
func NewNop() *zap.Logger {
	return zap.NewNop()
}
