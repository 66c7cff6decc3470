// Package observability defines shared logging and metrics primitives.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// Logger captures structured logging behaviours shared across layers.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field represents a key/value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// F builds a logging field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

var defaultLogger Logger = noopLogger{}

// SetLogger overrides the global logger used by the system.
func SetLogger(logger Logger) {
	if logger == nil {
		defaultLogger = noopLogger{}
		return
	}
	defaultLogger = logger
}

// Log returns the current global logger instance.
func Log() Logger {
	return defaultLogger
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...Field) {}
func (noopLogger) Info(string, ...Field)  {}
func (noopLogger) Warn(string, ...Field)  {}
func (noopLogger) Error(string, ...Field) {}

// TextLogger writes key=value formatted log lines to an io.Writer.
type TextLogger struct {
	mu    sync.Mutex
	out   io.Writer
	clock func() time.Time
}

// NewTextLogger constructs a logger writing human-readable lines to out.
func NewTextLogger(out io.Writer) *TextLogger {
	return &TextLogger{out: out, clock: time.Now}
}

// WithClock overrides the timestamp source, primarily for testing.
func (l *TextLogger) WithClock(clock func() time.Time) *TextLogger {
	l.mu.Lock()
	defer l.mu.Unlock()
	if clock == nil {
		l.clock = time.Now
	} else {
		l.clock = clock
	}
	return l
}

// Debug implements Logger.
func (l *TextLogger) Debug(msg string, fields ...Field) { l.write("DEBUG", msg, fields) }

// Info implements Logger.
func (l *TextLogger) Info(msg string, fields ...Field) { l.write("INFO", msg, fields) }

// Warn implements Logger.
func (l *TextLogger) Warn(msg string, fields ...Field) { l.write("WARN", msg, fields) }

// Error implements Logger.
func (l *TextLogger) Error(msg string, fields ...Field) { l.write("ERROR", msg, fields) }

func (l *TextLogger) write(level, msg string, fields []Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.out == nil {
		return
	}
	var b strings.Builder
	b.WriteString(l.clock().UTC().Format(time.RFC3339Nano))
	b.WriteString(" ")
	b.WriteString(level)
	b.WriteString(" ")
	b.WriteString(msg)
	if len(fields) > 0 {
		sorted := make([]Field, len(fields))
		copy(sorted, fields)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
		for _, f := range sorted {
			b.WriteString(" ")
			b.WriteString(f.Key)
			b.WriteString("=")
			b.WriteString(fmt.Sprintf("%v", f.Value))
		}
	}
	b.WriteString("\n")
	_, _ = io.WriteString(l.out, b.String())
}
