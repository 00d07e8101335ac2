// Package logger provides leveled process logging for SmartMarket.
// Warnings and errors are always written. Info and Debug messages are
// written only in verbose mode (--verbose or SMARTMARKET_VERBOSE=1), which
// is how operators follow a build or a query through the engines.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level orders messages by severity.
type Level int

// Levels, lowest first.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

var (
	mu        sync.RWMutex
	threshold           = LevelWarn
	output    io.Writer = os.Stderr
	now                 = time.Now
)

// SetVerbose lowers the threshold to Debug, or restores it to Warn.
func SetVerbose(v bool) {
	if v {
		SetLevel(LevelDebug)
		return
	}
	SetLevel(LevelWarn)
}

// SetLevel sets the lowest level written.
func SetLevel(l Level) {
	mu.Lock()
	threshold = l
	mu.Unlock()
}

// IsVerbose reports whether Debug messages are written.
func IsVerbose() bool {
	return Enabled(LevelDebug)
}

// Enabled reports whether messages at l are written.
func Enabled(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l >= threshold
}

// SetOutput sets the destination. Nil restores os.Stderr.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	mu.Lock()
	output = w
	mu.Unlock()
}

func logf(l Level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if l < threshold {
		return
	}
	fmt.Fprintf(output, "[%s] %s\n", l, fmt.Sprintf(format, args...))
}

// Debug traces engine internals.
func Debug(format string, args ...any) { logf(LevelDebug, format, args...) }

// Info reports progress.
func Info(format string, args ...any) { logf(LevelInfo, format, args...) }

// Warn reports a degraded but working state.
func Warn(format string, args ...any) { logf(LevelWarn, format, args...) }

// Error reports a failed operation.
func Error(format string, args ...any) { logf(LevelError, format, args...) }

// Section prints a header before a group of verbose messages.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if threshold <= LevelDebug {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Timed logs the duration of an operation at debug level when the returned
// function is called:
//
//	defer logger.Timed("build products_index")()
func Timed(what string) func() {
	start := now()
	return func() {
		Debug("%s took %s", what, now().Sub(start).Round(time.Millisecond))
	}
}
