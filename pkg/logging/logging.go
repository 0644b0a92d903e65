package logging

import (
	"github.com/sirupsen/logrus"
)

// Logger is the interface used for logging throughout the trainer. It is a
// subset of logrus' field logger surface, so that components never depend on a
// concrete logging backend.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// NewComponentLogger creates a logger tagged with the given component name.
func NewComponentLogger(component string) Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return log.WithField("component", component)
}

// Discard returns a logger that drops all messages. It is primarily useful in
// tests.
func Discard() Logger {
	log := logrus.New()
	log.SetOutput(nullWriter{})
	return log
}

type nullWriter struct{}

func (nullWriter) Write(p []byte) (int, error) { return len(p), nil }
