package logging

import (
	"fmt"
	"log"

	"github.com/fatih/color"
)

// Logger is the main logger type. It is keyed by a verbosity Level: messages
// logged above the logger's level are silently dropped. It is designed to use
// the standard logger provided by the log package, so it respects any flags
// set for that logger. It is safe for concurrent use.
type Logger struct {
	// level is the verbosity level at or below which messages are emitted.
	level Level
	// prefix is any prefix specified for the logger.
	prefix string
}

// NewLogger creates a new root logger at the specified verbosity level.
func NewLogger(level Level) *Logger {
	return &Logger{level: level}
}

// Sublogger creates a new sublogger with the specified name, inheriting the
// parent's verbosity level.
func (l *Logger) Sublogger(name string) *Logger {
	if l == nil {
		return nil
	}

	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}

	return &Logger{level: l.level, prefix: prefix}
}

// Level reports the logger's verbosity level.
func (l *Logger) Level() Level {
	if l == nil {
		return LevelSilent
	}
	return l.level
}

// output is the internal logging method.
func (l *Logger) output(calldepth int, line string) {
	if l.prefix != "" {
		line = fmt.Sprintf("[%s] %s", l.prefix, line)
	}
	log.Output(calldepth, line)
}

// Summary logs a summary-level line (visible at LevelSummary and above).
func (l *Logger) Summary(v ...interface{}) {
	if l != nil && l.level >= LevelSummary {
		l.output(3, fmt.Sprint(v...))
	}
}

// Summaryf logs a summary-level line with fmt.Printf semantics.
func (l *Logger) Summaryf(format string, v ...interface{}) {
	if l != nil && l.level >= LevelSummary {
		l.output(3, fmt.Sprintf(format, v...))
	}
}

// Trace logs a trace-level (per-file) line (visible only at LevelTrace).
func (l *Logger) Trace(v ...interface{}) {
	if l != nil && l.level >= LevelTrace {
		l.output(3, fmt.Sprint(v...))
	}
}

// Tracef logs a trace-level line with fmt.Printf semantics.
func (l *Logger) Tracef(format string, v ...interface{}) {
	if l != nil && l.level >= LevelTrace {
		l.output(3, fmt.Sprintf(format, v...))
	}
}

// Action logs an emitted-action line. Actions are always visible, even at
// LevelSilent, since they are the program's primary output (advisory move
// reports, duplicate groups), not diagnostics.
func (l *Logger) Action(v ...interface{}) {
	if l != nil {
		l.output(3, fmt.Sprint(v...))
	}
}

// Actionf logs an emitted-action line with fmt.Printf semantics.
func (l *Logger) Actionf(format string, v ...interface{}) {
	if l != nil {
		l.output(3, fmt.Sprintf(format, v...))
	}
}

// Warn logs error information with a warning prefix and yellow color.
func (l *Logger) Warn(err error) {
	if l != nil {
		l.output(3, color.YellowString("Warning: %v", err))
	}
}

// Error logs error information with an error prefix and red color.
func (l *Logger) Error(err error) {
	if l != nil {
		l.output(3, color.RedString("Error: %v", err))
	}
}
