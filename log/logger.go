package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const DefaultTimeFormat = "2006-01-02 15:04:05"

// Logger writes leveled entries for one component. Loggers derived through
// Named or With share the writer of their parent.
type Logger struct {
	mu     *sync.Mutex
	writer io.Writer
	fields map[string]any

	Name  string
	Level LogLevel

	TimeFormat string
	File       string
	NoColor    bool
	JSON       bool
	NoTerminal bool
	Rotation   *LoggerRotation
}

// LoggerRotation is handed to lumberjack when logging into a file.
type LoggerRotation struct {
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

type logEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

func NewLogger(name string, level LogLevel, file string, noTerminal bool) *Logger {
	l := &Logger{
		mu:         &sync.Mutex{},
		Name:       name,
		Level:      level,
		File:       file,
		NoTerminal: noTerminal,
		TimeFormat: DefaultTimeFormat,
		Rotation: &LoggerRotation{
			MaxSize:    64,
			MaxBackups: 3,
			MaxAge:     28,
		},
	}

	var writers []io.Writer
	if !noTerminal || file == "" {
		writers = append(writers, os.Stdout)
	}
	if file != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    l.Rotation.MaxSize,
			MaxBackups: l.Rotation.MaxBackups,
			MaxAge:     l.Rotation.MaxAge,
			Compress:   l.Rotation.Compress,
		})
	}
	l.writer = io.MultiWriter(writers...)

	return l
}

// NewWriterLogger logs into w without colors, mostly useful in tests.
func NewWriterLogger(name string, level LogLevel, w io.Writer) *Logger {
	return &Logger{
		mu:         &sync.Mutex{},
		writer:     w,
		Name:       name,
		Level:      level,
		TimeFormat: DefaultTimeFormat,
		NoColor:    true,
		NoTerminal: true,
	}
}

// NewDiscardLogger returns a logger that drops every entry below Fatal.
func NewDiscardLogger() *Logger {
	return NewWriterLogger("", Fatal, io.Discard)
}

// Named returns a child logger for a sub-component, e.g. "blockdb/lock".
func (l *Logger) Named(name string) *Logger {
	child := l.clone()
	if l.Name != "" {
		child.Name = l.Name + "/" + name
	} else {
		child.Name = name
	}
	return child
}

// With returns a child logger attaching key to every entry it writes.
func (l *Logger) With(key string, value any) *Logger {
	child := l.clone()
	child.fields = make(map[string]any, len(l.fields)+1)
	for k, v := range l.fields {
		child.fields[k] = v
	}
	child.fields[key] = value
	return child
}

func (l *Logger) clone() *Logger {
	c := *l
	return &c
}

func (l *Logger) Enabled(level LogLevel) bool {
	return level >= l.Level
}

func (l *Logger) log(level LogLevel, msg string, args ...any) {
	if !l.Enabled(level) {
		return
	}

	timestamp := time.Now().Format(l.TimeFormat)
	message := fmt.Sprintf(msg, args...)

	var line string
	if l.JSON {
		b, err := json.Marshal(logEntry{
			Timestamp: timestamp,
			Level:     level.String(),
			Component: l.Name,
			Message:   message,
			Fields:    l.fields,
		})
		if err != nil {
			b = fmt.Appendf(nil, `{"level":"ERROR","message":"unable to encode log entry: %s"}`, err)
		}
		line = string(b)
	} else {
		var sb strings.Builder
		fmt.Fprintf(&sb, "[%s] %-5s", timestamp, level)
		if l.Name != "" {
			fmt.Fprintf(&sb, " [%s]", l.Name)
		}
		sb.WriteString(" " + message)

		keys := make([]string, 0, len(l.fields))
		for k := range l.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, " %s=%v", k, l.fields[k])
		}

		line = sb.String()
		if !l.NoTerminal && !l.NoColor {
			line = Color(level) + line + colorReset
		}
	}

	l.mu.Lock()
	fmt.Fprintln(l.writer, line)
	l.mu.Unlock()

	if level == Fatal {
		os.Exit(1)
	}
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log(Debug, msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.log(Info, msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log(Warn, msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log(Error, msg, args...)
}

// Fatal logs the entry and exits the process.
func (l *Logger) Fatal(msg string, args ...any) {
	l.log(Fatal, msg, args...)
}
