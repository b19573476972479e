package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger backed by an in-memory observer so tests can
// inspect what was logged.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger returns a debug-level logger that records every entry.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(zapcore.DebugLevel)
	return &TestLogger{
		Logger:   &Logger{zap: zap.New(core)},
		observed: observed,
	}
}

// All returns every recorded entry in order.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// Filter returns recorded entries whose message matches exactly.
func (t *TestLogger) Filter(msg string) []observer.LoggedEntry {
	return t.observed.FilterMessage(msg).All()
}
