// Package qlog is the process-wide leveled log sink for qgs.
//
// It wraps a single logrus.Logger the way the rest of the pipeline
// expects a configuration-sunk global: one level setter, one leveled
// write operation, safe to call from the single reader goroutine. There
// is no cross-thread synchronization because the coordinator never
// fans out.
package qlog

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// Level mirrors the six-level scheme of the original QGS logger:
// increasing severity from Trace (everything) to Fatal (abort).
type Level int

const (
	Trace Level = iota
	Debug
	Verbose
	Info
	Warning
	Fatal
)

var (
	logger  = logrus.StandardLogger()
	current = Info
)

// Init sets up the formatter the same way the teacher's Main() does:
// a bare text formatter with no timestamp when stderr isn't a
// terminal, so logs are greppable in CI/batch runs.
func Init() {
	logger.SetOutput(os.Stderr)
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		logger.Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	}
}

// SetLevel raises or lowers the verbosity floor. Messages below the
// floor are dropped before logrus ever sees them, and logrus itself is
// raised to match so Tracef/Debugf aren't also dropped at its default
// InfoLevel.
func SetLevel(l Level) {
	current = l
	logger.SetLevel(toLogrusLevel(l))
}

func toLogrusLevel(l Level) logrus.Level {
	switch {
	case l <= Trace:
		return logrus.TraceLevel
	case l <= Debug:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

func enabled(l Level) bool {
	return l >= current
}

func Tracef(format string, args ...interface{}) {
	if enabled(Trace) {
		logger.Tracef(format, args...)
	}
}

func Debugf(format string, args ...interface{}) {
	if enabled(Debug) {
		logger.Debugf(format, args...)
	}
}

// Verbosef sits between Debug and Info in the original scheme; logrus
// has no matching level, so it is emitted at Info with a tag.
func Verbosef(format string, args ...interface{}) {
	if enabled(Verbose) {
		logger.Infof("[verbose] "+format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if enabled(Info) {
		logger.Infof(format, args...)
	}
}

func Warningf(format string, args ...interface{}) {
	if enabled(Warning) {
		logger.Warnf(format, args...)
	}
}

// Fatalf always logs and terminates the process, matching the
// original's LOG(FATAL) << ...; std::exit(EXIT_FAILURE) pattern. It is
// used only for conditions listed as Fatal in the error-handling
// design: unopenable required files, malformed headers, corrupt magic
// bytes, output write failures, bad CLI flags.
func Fatalf(format string, args ...interface{}) {
	logger.Fatalf(format, args...)
}
