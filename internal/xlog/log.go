// Package xlog is a thin wrapper around zerolog giving every package in
// kadnode a shared, pre-configured logger without each caller importing
// zerolog directly.
package xlog

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
)

// SetLevel adjusts the global log level (e.g. from a CLI flag).
func SetLevel(level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	logger = logger.Level(level)
}

// With returns a child logger with the given component name attached,
// so messages can be traced back to the Routing Manager, Observer,
// Refresh Worker, etc.
func With(component string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger.With().Str("component", component).Logger()
}
