// Package logging wires the tracker's structured logging. Every component
// that used to take a bare Printf-style logger now takes a Logger built on
// logrus, so one log line can carry request ids and invalidation reasons as
// fields instead of being interpolated into the message.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the narrow logging surface components depend on. *logrus.Entry
// and *logrus.Logger both satisfy it.
type Logger interface {
	WithField(key string, value any) *logrus.Entry
	WithFields(fields logrus.Fields) *logrus.Entry
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// New builds a logrus.Logger writing JSON to w at level.
func New(w io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.JSONFormatter{})
	return l
}

// Default builds the standard text-formatted logger writing to stderr at
// info level, used by the CLI.
func Default() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

type nopLogger struct{}

func (nopLogger) WithField(string, any) *logrus.Entry        { return logrus.NewEntry(discard) }
func (nopLogger) WithFields(logrus.Fields) *logrus.Entry     { return logrus.NewEntry(discard) }
func (nopLogger) Debugf(string, ...any)                      {}
func (nopLogger) Infof(string, ...any)                       {}
func (nopLogger) Warnf(string, ...any)                       {}
func (nopLogger) Errorf(string, ...any)                      {}

var discard = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// Nop returns a Logger that discards everything, for callers that did not
// configure one.
func Nop() Logger { return nopLogger{} }

// OrNop returns l if non-nil, otherwise a discarding Logger.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}
