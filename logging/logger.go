// Package logging provides the leveled logging facade used across guardexec.
// Components accept an injected Logger; the package-level accessors exist for
// callers that configure logging once at startup and want every component to
// pick the same sink up by default.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level controls which messages a logger emits. Higher levels are more
// verbose: a logger configured at LevelInfo emits error, warn and info
// messages and suppresses verbose and debug.
type Level int

const (
	// LevelError emits only failures.
	LevelError Level = iota

	// LevelWarn adds recoverable anomalies.
	LevelWarn

	// LevelInfo adds normal operational messages. This is the default.
	LevelInfo

	// LevelVerbose adds high-volume diagnostics such as per-invocation traces.
	LevelVerbose

	// LevelDebug emits everything.
	LevelDebug
)

// String returns the bracket tag written for the level.
func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelVerbose:
		return "VERBOSE"
	case LevelDebug:
		return "DEBUG"
	default:
		return "INFO"
	}
}

// ParseLevel parses a level name. Unknown names map to LevelInfo.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "error":
		return LevelError
	case "warn", "warning":
		return LevelWarn
	case "info":
		return LevelInfo
	case "verbose":
		return LevelVerbose
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// Logger is the logging capability guardexec components depend on.
// Implementations must be safe for concurrent use.
type Logger interface {
	// Error logs a failure.
	Error(msg string, meta ...any)

	// Warn logs a recoverable anomaly.
	Warn(msg string, meta ...any)

	// Info logs normal operation.
	Info(msg string, meta ...any)

	// Verbose logs high-volume diagnostics.
	Verbose(msg string, meta ...any)

	// Debug logs internal detail useful only when debugging.
	Debug(msg string, meta ...any)
}

// ConsoleLogger writes one line per message to a sink.
// Writes are serialized by a mutex so concurrent callers never interleave.
type ConsoleLogger struct {
	out   io.Writer
	mu    sync.Mutex
	level Level
}

// NewConsoleLogger creates a console logger writing to os.Stderr.
func NewConsoleLogger(level Level) *ConsoleLogger {
	return &ConsoleLogger{out: os.Stderr, level: level}
}

// NewConsoleLoggerTo creates a console logger writing to the given sink.
func NewConsoleLoggerTo(out io.Writer, level Level) *ConsoleLogger {
	return &ConsoleLogger{out: out, level: level}
}

// Error implements Logger.Error.
func (c *ConsoleLogger) Error(msg string, meta ...any) { c.log(LevelError, msg, meta) }

// Warn implements Logger.Warn.
func (c *ConsoleLogger) Warn(msg string, meta ...any) { c.log(LevelWarn, msg, meta) }

// Info implements Logger.Info.
func (c *ConsoleLogger) Info(msg string, meta ...any) { c.log(LevelInfo, msg, meta) }

// Verbose implements Logger.Verbose.
func (c *ConsoleLogger) Verbose(msg string, meta ...any) { c.log(LevelVerbose, msg, meta) }

// Debug implements Logger.Debug.
func (c *ConsoleLogger) Debug(msg string, meta ...any) { c.log(LevelDebug, msg, meta) }

func (c *ConsoleLogger) log(level Level, msg string, meta []any) {
	if level > c.level {
		return
	}

	line := formatLine(time.Now(), level, msg, meta)

	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.out, line)
}

// formatLine renders a log entry.
// Format: [2006-01-02 15:04:05] [LEVEL] message meta...
func formatLine(t time.Time, level Level, msg string, meta []any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s", t.Format("2006-01-02 15:04:05"), level, msg)
	for _, m := range meta {
		fmt.Fprintf(&b, " %v", m)
	}
	b.WriteByte('\n')
	return b.String()
}

var (
	processMu     sync.RWMutex
	processLogger Logger = NewConsoleLogger(LevelInfo)
)

// GetLogger returns the process-wide logger.
func GetLogger() Logger {
	processMu.RLock()
	defer processMu.RUnlock()
	return processLogger
}

// SetLogger replaces the process-wide logger. Concurrent calls are safe and
// the last write wins; the intended discipline is a single assignment during
// startup. A nil logger installs the no-op logger.
func SetLogger(l Logger) {
	if l == nil {
		l = Nop()
	}
	processMu.Lock()
	processLogger = l
	processMu.Unlock()
}

// Nop returns a logger that discards everything.
func Nop() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Error(string, ...any)   {}
func (nopLogger) Warn(string, ...any)    {}
func (nopLogger) Info(string, ...any)    {}
func (nopLogger) Verbose(string, ...any) {}
func (nopLogger) Debug(string, ...any)   {}
