// Package logging contains the structured logger used by every splatmesh package.
package logging

import (
	"io"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Logger is the leveled, structured logger handed to every component. The `w` variants take
// alternating keys and values.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	// Sublogger returns a logger whose name is suffixed with `subname`. It shares the parent's
	// appenders but has its own level.
	Sublogger(subname string) Logger
	AddAppender(appender Appender)
	SetLevel(level Level)
	GetLevel() Level
	Sync() error
}

// CLIDefaultLevel is the level of command line runs that ask for nothing else. Progress output
// already narrates the happy path.
const CLIDefaultLevel = WARN

// CLILevel picks the level of a command line run: debug wins, then the configured level, then
// CLIDefaultLevel.
func CLILevel(configured *Level, debug bool) Level {
	switch {
	case debug:
		return DEBUG
	case configured != nil:
		return *configured
	default:
		return CLIDefaultLevel
	}
}

// NewCLILogger returns the logger of a command line run, writing tab separated lines to w in
// UTC.
func NewCLILogger(name string, w io.Writer, level Level) Logger {
	return newImpl(name, level, true, NewWriterAppender(w))
}

// NewBlankLogger returns a new logger that outputs Debug+ logs in UTC, but without any
// pre-existing appenders/outputs.
func NewBlankLogger(name string) Logger {
	return newImpl(name, DEBUG, true)
}

// ForRequest returns the sublogger for one meshing request, named after the first block of its
// ID so concurrent batch jobs can be told apart.
func ForRequest(logger Logger, id uuid.UUID) Logger {
	return logger.Sublogger(RequestName(id))
}

// RequestName is the sublogger name ForRequest uses for id.
func RequestName(id uuid.UUID) string {
	return "req-" + id.String()[:8]
}

// NewTestLogger returns a new logger that outputs Debug+ logs to the test object in local time.
func NewTestLogger(tb testing.TB) Logger {
	logger, _ := NewObservedTestLogger(tb)
	return logger
}

// NewObservedTestLogger is like NewTestLogger but also saves logs to an in memory observer.
func NewObservedTestLogger(tb testing.TB) (Logger, *observer.ObservedLogs) {
	observerCore, observedLogs := observer.New(zap.LevelEnablerFunc(zapcore.DebugLevel.Enabled))
	return newImpl("", DEBUG, false, NewTestAppender(tb), observerCore), observedLogs
}
