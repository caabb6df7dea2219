// Package logging provides the component-tagged zerolog logger used across the service.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Logger tags every event with the component that produced it.
type Logger struct {
	logger zerolog.Logger
}

var (
	root   = New(os.Stdout, zerolog.InfoLevel)
	rootMu sync.RWMutex
)

// New creates a JSON logger writing to w.
func New(w io.Writer, level zerolog.Level) *Logger {
	logger := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()
	return &Logger{logger: logger}
}

// NewConsole creates a human-readable logger on stdout.
func NewConsole(level zerolog.Level) *Logger {
	return New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}, level)
}

// Nop discards everything. Handy in tests.
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// ParseLevel maps a config string to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// SetDefault replaces the process-wide logger.
func SetDefault(l *Logger) {
	rootMu.Lock()
	root = l
	rootMu.Unlock()
}

// Default returns the process-wide logger.
func Default() *Logger {
	rootMu.RLock()
	defer rootMu.RUnlock()
	return root
}

// Component returns a zerolog logger tagged with the component name.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.logger.With().Str("component", name).Logger()
}

// For is shorthand for Default().Component(name).
func For(name string) zerolog.Logger {
	return Default().Component(name)
}

// Zerolog exposes the underlying logger for middleware wiring.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.logger
}
