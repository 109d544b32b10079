// logging.go: Pluggable logging interface for the plugin rack
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plugrack

import (
	"sync"
)

// Logger defines the pluggable logging interface for the go-plugrack library.
//
// The rack never writes to a concrete logging backend itself; callers supply
// any implementation of this interface (a zap adapter, a logrus adapter, a
// test capture logger). When no logger is provided the rack stays silent.
//
// Design principles:
//   - Zero dependencies: the interface carries no external logging types
//   - Structured args: key-value pairs for structured logging
//   - Level-based: standard log levels (Debug, Info, Warn, Error)
//   - Contextual logging: With() for persistent context fields
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, args ...any)

	// Info logs an info message with optional key-value pairs
	Info(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs
	Warn(msg string, args ...any)

	// Error logs an error message with optional key-value pairs
	Error(msg string, args ...any)

	// With returns a new logger with persistent context key-value pairs
	With(args ...any) Logger
}

// NoOpLogger provides a silent logger implementation.
//
// This is the rack's default: all messages are discarded. Useful for
// production setups with external logging and for quiet tests.
type NoOpLogger struct{}

// NewNoOpLogger creates a new no-operation logger.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// Debug implements Logger interface (no-op)
func (n *NoOpLogger) Debug(msg string, args ...any) {}

// Info implements Logger interface (no-op)
func (n *NoOpLogger) Info(msg string, args ...any) {}

// Warn implements Logger interface (no-op)
func (n *NoOpLogger) Warn(msg string, args ...any) {}

// Error implements Logger interface (no-op)
func (n *NoOpLogger) Error(msg string, args ...any) {}

// With implements Logger interface (no-op)
func (n *NoOpLogger) With(args ...any) Logger {
	return n // Return same instance since it's stateless
}

// DefaultLogger creates a reasonable default logger for the library.
//
// Returns NoOpLogger; users should provide their own Logger implementation.
func DefaultLogger() Logger {
	return NewNoOpLogger()
}

// TestLogger for testing - captures log messages
type TestLogger struct {
	mu       sync.RWMutex
	Messages []TestLogMessage
}

// TestLogMessage represents a captured log message for testing.
type TestLogMessage struct {
	Level   string
	Message string
	Args    []any
}

// NewTestLogger creates a new test logger.
func NewTestLogger() *TestLogger {
	return &TestLogger{
		Messages: make([]TestLogMessage, 0),
	}
}

func (t *TestLogger) record(level, msg string, args []any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Messages = append(t.Messages, TestLogMessage{
		Level:   level,
		Message: msg,
		Args:    args,
	})
}

// Debug implements Logger interface (captures message)
func (t *TestLogger) Debug(msg string, args ...any) { t.record("DEBUG", msg, args) }

// Info implements Logger interface (captures message)
func (t *TestLogger) Info(msg string, args ...any) { t.record("INFO", msg, args) }

// Warn implements Logger interface (captures message)
func (t *TestLogger) Warn(msg string, args ...any) { t.record("WARN", msg, args) }

// Error implements Logger interface (captures message)
func (t *TestLogger) Error(msg string, args ...any) { t.record("ERROR", msg, args) }

// With implements Logger interface (returns a logger sharing the capture buffer)
func (t *TestLogger) With(args ...any) Logger {
	// Context chaining is not needed for test assertions.
	return t
}

// HasMessage checks if the logger captured a message with the given level and text.
func (t *TestLogger) HasMessage(level, message string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, msg := range t.Messages {
		if msg.Level == level && msg.Message == message {
			return true
		}
	}
	return false
}

// Clear removes all captured messages.
func (t *TestLogger) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Messages = t.Messages[:0]
}
