// Basic logging infrastructure shared by the parsers and the driver.  Everything
// goes to stderr; the default level suppresses anything below Warning so that
// normal runs print only the report itself.

package status

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// LogLevel indicates the level of logging that should be done.

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarning
	LogLevelError
	LogLevelCritical
)

// Implementations of this must be thread-safe.
type Logger interface {
	// Print only messages at level l or above
	SetLevel(l LogLevel)

	// Lower log level at least to l
	LowerLevelTo(l LogLevel)

	// Print on this stream, if installed
	SetStderr(w io.Writer)

	// Print at various levels.  None of these must exit or panic, the name indicates
	// the log level only.
	Infof(format string, args ...any)
	Warningf(format string, args ...any)
	Errorf(format string, args ...any)
	Criticalf(format string, args ...any)
}

type StandardLogger struct {
	sync.Mutex
	level  LogLevel
	stderr io.Writer
}

// MT: Constant after initialization, thread-safe.
var defaultLogger Logger = &StandardLogger{
	level:  LogLevelWarning,
	stderr: os.Stderr,
}

func Default() Logger {
	return defaultLogger
}

func (sl *StandardLogger) SetLevel(l LogLevel) {
	sl.Lock()
	defer sl.Unlock()

	sl.level = l
}

func (sl *StandardLogger) LowerLevelTo(l LogLevel) {
	sl.Lock()
	defer sl.Unlock()

	if sl.level > l {
		sl.level = l
	}
}

func (sl *StandardLogger) SetStderr(stderr io.Writer) {
	sl.Lock()
	defer sl.Unlock()

	sl.stderr = stderr
}

func (sl *StandardLogger) Infof(format string, args ...any) {
	sl.emit(LogLevelInfo, format, args...)
}

func (sl *StandardLogger) Warningf(format string, args ...any) {
	sl.emit(LogLevelWarning, format, args...)
}

func (sl *StandardLogger) Errorf(format string, args ...any) {
	sl.emit(LogLevelError, format, args...)
}

func (sl *StandardLogger) Criticalf(format string, args ...any) {
	sl.emit(LogLevelCritical, format, args...)
}

func (sl *StandardLogger) emit(l LogLevel, format string, args ...any) {
	sl.Lock()
	defer sl.Unlock()

	if sl.level <= l && sl.stderr != nil {
		fmt.Fprintln(sl.stderr, fmt.Sprintf(format, args...))
	}
}

// Convenience functions on the default logger.

func Fatal(msg string) {
	defaultLogger.Criticalf("%s", msg)
	os.Exit(1)
}

func Fatalf(format string, args ...any) {
	defaultLogger.Criticalf(format, args...)
	os.Exit(1)
}

func Errorf(format string, args ...any) {
	defaultLogger.Errorf(format, args...)
}

func Warningf(format string, args ...any) {
	defaultLogger.Warningf(format, args...)
}

func Infof(format string, args ...any) {
	defaultLogger.Infof(format, args...)
}
