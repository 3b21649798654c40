// Package logger provides a lightweight, centralized logging facility
// with configurable verbosity levels, backed by logrus.
//
// Design goals:
//   - Simple API (Errorf, Infof, Debugf, Tracef)
//   - Centralized verbosity control
//   - Structured fields for component-scoped logging
//   - Adapter from the core's observe.Observer hook to log output
//
// Verbosity levels (in increasing order):
//
//	Error < Info < Debug < Trace
//
// Example usage:
//
//	logger.SetVerbosity(2) // Debug
//	logger.Infof("starting analysis")
//	logger.Debugf("spot=%f vol=%f", spot, vol)
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/contactkeval/option-pricer/internal/observe"
)

// Level represents a logging verbosity level.
// Higher values mean more verbose logging.
type Level int

const (
	Error Level = iota // Error logs only critical failures.
	Info               // Info logs high-level application progress.
	Debug              // Debug logs detailed diagnostic information.
	Trace              // Trace logs very fine-grained execution details.
)

// log is the process-wide logrus instance behind the package helpers.
var log = newLogrus(os.Stderr)

func newLogrus(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// toLogrus maps a verbosity level onto the logrus level scale.
func toLogrus(l Level) logrus.Level {
	switch {
	case l <= Error:
		return logrus.ErrorLevel
	case l == Info:
		return logrus.InfoLevel
	case l == Debug:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}

// SetVerbosity sets the global logging verbosity.
// Typically called once during application startup
// (e.g. after parsing CLI flags).
func SetVerbosity(v int) {
	log.SetLevel(toLogrus(Level(v)))
}

// SetLevel sets verbosity from a level name ("error", "info", "debug",
// "trace"). Unknown names are rejected and leave the level unchanged.
func SetLevel(name string) error {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "error":
		SetVerbosity(int(Error))
	case "info", "":
		SetVerbosity(int(Info))
	case "debug":
		SetVerbosity(int(Debug))
	case "trace":
		SetVerbosity(int(Trace))
	default:
		return fmt.Errorf("unknown log level %q", name)
	}
	return nil
}

// SetOutput redirects all log output.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// SetFile appends log output to the file at path in addition to the
// current output.
// The returned closer releases the file.
func SetFile(path string) (io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(log.Out, f))
	return f, nil
}

// WithComponent returns an entry tagged with the component name.
func WithComponent(component string) *logrus.Entry {
	return log.WithField("component", component)
}

// Errorf logs an error-level message.
// Use this for failures that require attention.
func Errorf(format string, args ...any) {
	log.Errorf(format, args...)
}

// Warnf logs a warning; shown at Info verbosity and above.
func Warnf(format string, args ...any) {
	log.Warnf(format, args...)
}

// Infof logs an informational message.
// Use this for major lifecycle events.
func Infof(format string, args ...any) {
	log.Infof(format, args...)
}

// Debugf logs debugging information.
// Use this for diagnostic output useful during development.
func Debugf(format string, args ...any) {
	log.Debugf(format, args...)
}

// Tracef logs very detailed execution traces.
// Use this sparingly due to high volume.
func Tracef(format string, args ...any) {
	log.Tracef(format, args...)
}

// Observer returns an observe.Observer that writes every event at trace
// level, tagged with the component and operation.
func Observer() observe.Observer {
	return observe.Func(func(e observe.Event) {
		if !log.IsLevelEnabled(logrus.TraceLevel) {
			return
		}
		log.WithFields(logrus.Fields(e.Fields)).
			WithField("component", e.Component).
			Trace(e.Op)
	})
}
