package util

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

type LogLevel int32

const (
	LevelTrace LogLevel = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[string]LogLevel{
	"trace": LevelTrace,
	"debug": LevelDebug,
	"info":  LevelInfo,
	"warn":  LevelWarn,
	"error": LevelError,
}

// Logger wraps a charmbracelet logger with level filtering that also covers trace output.
type Logger struct {
	level *atomic.Int32
	base  *log.Logger
}

// NewLogger creates a level-aware logger writing to stderr.
func NewLogger(level LogLevel) *Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a level-aware logger writing to the provided destination.
func NewLoggerWithWriter(level LogLevel, w io.Writer) *Logger {
	base := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           log.DebugLevel,
	})
	l := &Logger{level: &atomic.Int32{}, base: base}
	l.level.Store(int32(level))
	return l
}

// With returns a child logger that attaches keyvals to every line. The child
// shares the parent's level.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{level: l.level, base: l.base.With(keyvals...)}
}

func (l *Logger) SetLevel(level LogLevel) {
	l.level.Store(int32(level))
}

func (l *Logger) Level() LogLevel {
	return LogLevel(l.level.Load())
}

func (l *Logger) logf(level LogLevel, format string, args ...interface{}) {
	if l == nil || level < LogLevel(l.level.Load()) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	switch level {
	case LevelTrace:
		l.base.Debug(msg, "trace", true)
	case LevelDebug:
		l.base.Debug(msg)
	case LevelInfo:
		l.base.Info(msg)
	case LevelWarn:
		l.base.Warn(msg)
	default:
		l.base.Error(msg)
	}
}

func (l *Logger) Tracef(format string, args ...interface{}) {
	l.logf(LevelTrace, format, args...)
}
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logf(LevelDebug, format, args...)
}
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logf(LevelInfo, format, args...)
}
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logf(LevelWarn, format, args...)
}
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logf(LevelError, format, args...)
}

// ParseLogLevel converts a string into a LogLevel, defaulting to info.
func ParseLogLevel(s string) LogLevel {
	if lvl, ok := LookupLogLevel(s); ok {
		return lvl
	}
	return LevelInfo
}

// LookupLogLevel reports whether s names a known level.
func LookupLogLevel(s string) (LogLevel, bool) {
	lvl, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]
	return lvl, ok
}

// String returns the lowercase name of the level.
func (lvl LogLevel) String() string {
	for name, v := range levelNames {
		if v == lvl {
			return name
		}
	}
	return fmt.Sprintf("level(%d)", int32(lvl))
}
