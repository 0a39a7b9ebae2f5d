package observability

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// StdLogger writes structured key=value lines through the standard library
// logger. It is the default sink for the CLI; services typically install
// their own implementation via SetLogger.
type StdLogger struct {
	logger *log.Logger
	debug  bool
}

// NewStdLogger constructs a StdLogger writing to stderr.
func NewStdLogger(debug bool) *StdLogger {
	return &StdLogger{
		logger: log.New(os.Stderr, "", log.LstdFlags|log.LUTC),
		debug:  debug,
	}
}

// Debug implements Logger.
func (l *StdLogger) Debug(msg string, fields ...Field) {
	if !l.debug {
		return
	}
	l.emit("DEBUG", msg, fields)
}

// Info implements Logger.
func (l *StdLogger) Info(msg string, fields ...Field) { l.emit("INFO", msg, fields) }

// Warn implements Logger.
func (l *StdLogger) Warn(msg string, fields ...Field) { l.emit("WARN", msg, fields) }

// Error implements Logger.
func (l *StdLogger) Error(msg string, fields ...Field) { l.emit("ERROR", msg, fields) }

func (l *StdLogger) emit(level, msg string, fields []Field) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteString(" ")
	b.WriteString(msg)
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	l.logger.Print(b.String())
}
