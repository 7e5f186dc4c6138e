package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
)

// Logger is a named logger. Every line it emits carries a "[name>]" prefix so
// output from the suggestion fetcher, the page session and the CLI can be told
// apart in a shared log file.
type Logger struct {
	name string
	std  *log.Logger
}

// writerHolder keeps the concrete type stored in atomic.Value stable when the
// output switches between *os.File and *bytes.Buffer.
type writerHolder struct {
	w io.Writer
}

var (
	globalDebug  atomic.Bool
	serviceDebug sync.Map // map[string]*atomic.Bool
	loggers      sync.Map // map[string]*Logger
	outputWriter atomic.Value
)

func init() {
	outputWriter.Store(writerHolder{w: os.Stderr})
}

// ForService returns (and memoizes) the logger for name.
func ForService(name string) *Logger {
	if name == "" {
		name = "unknown"
	}
	if l, ok := loggers.Load(name); ok {
		return l.(*Logger)
	}
	current := outputWriter.Load().(writerHolder).w
	logger := &Logger{name: name, std: log.New(current, "", log.LstdFlags|log.Lmicroseconds)}
	actual, _ := loggers.LoadOrStore(name, logger)
	return actual.(*Logger)
}

// SetGlobalDebug enables or disables debug logging for every service.
func SetGlobalDebug(enabled bool) {
	globalDebug.Store(enabled)
}

// GlobalDebug reports whether debug logging is enabled globally.
func GlobalDebug() bool {
	return globalDebug.Load()
}

// EnableDebugFor enables debug logging for a single service.
func EnableDebugFor(name string) {
	if name == "" {
		return
	}
	val, _ := serviceDebug.LoadOrStore(name, &atomic.Bool{})
	val.(*atomic.Bool).Store(true)
}

// DisableDebugFor disables a per-service debug override.
func DisableDebugFor(name string) {
	if name == "" {
		return
	}
	if val, ok := serviceDebug.Load(name); ok {
		val.(*atomic.Bool).Store(false)
	}
}

// DebugEnabledFor reports whether debug output is on for name, either
// globally or through a per-service override.
func DebugEnabledFor(name string) bool {
	if globalDebug.Load() {
		return true
	}
	if val, ok := serviceDebug.Load(name); ok {
		return val.(*atomic.Bool).Load()
	}
	return false
}

// SetOutput redirects every logger, existing and future, to w.
// The interactive shell uses this to keep log lines out of the rendered view.
func SetOutput(w io.Writer) {
	if w == nil {
		return
	}
	outputWriter.Store(writerHolder{w: w})
	loggers.Range(func(_, v any) bool {
		v.(*Logger).std.SetOutput(w)
		return true
	})
}

// Output returns the writer loggers currently write to.
func Output() io.Writer {
	return outputWriter.Load().(writerHolder).w
}

func (l *Logger) logInternal(level string, msg string) {
	l.std.Println(level + " [" + l.name + ">] " + msg)
}

// Infof logs an informational message.
func (l *Logger) Infof(format string, args ...any) {
	l.logInternal(LevelInfo, fmt.Sprintf(format, args...))
}

// Warnf logs a warning.
func (l *Logger) Warnf(format string, args ...any) {
	l.logInternal(LevelWarn, fmt.Sprintf(format, args...))
}

// Errorf logs an error.
func (l *Logger) Errorf(format string, args ...any) {
	l.logInternal(LevelError, fmt.Sprintf(format, args...))
}

// Debugf logs only when debug is enabled for this logger's service.
func (l *Logger) Debugf(format string, args ...any) {
	if !DebugEnabledFor(l.name) {
		return
	}
	l.logInternal(LevelDebug, fmt.Sprintf(format, args...))
}

const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelDebug = "DEBUG"
)
