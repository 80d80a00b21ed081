// Package logger writes structured JSON log lines with PII redaction.
//
// Each line carries time, level, msg and, for component loggers, component.
// Values under keys that look like emails or IP addresses are masked before
// they are written.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// ParseLevel maps "debug", "info", "warn" and "error" to a Level. Unknown
// names map to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	}
	return INFO
}

type sink struct {
	mu        sync.Mutex
	out       io.Writer
	level     Level
	redactPII bool
}

var std = &sink{out: os.Stderr, level: INFO, redactPII: true}

// SetLevel sets the minimum level for every logger.
func SetLevel(l Level) {
	std.mu.Lock()
	std.level = l
	std.mu.Unlock()
}

// SetRedactPII enables or disables PII redaction for every logger.
func SetRedactPII(r bool) {
	std.mu.Lock()
	std.redactPII = r
	std.mu.Unlock()
}

// SetOutput redirects every logger. Tests use it to capture lines.
func SetOutput(w io.Writer) {
	std.mu.Lock()
	std.out = w
	std.mu.Unlock()
}

// Logger tags its entries with a component name.
type Logger struct {
	component string
}

// New returns a logger whose entries carry component.
func New(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) Debug(msg string, fields ...interface{}) {
	std.write(DEBUG, l.component, msg, fields)
}

func (l *Logger) Info(msg string, fields ...interface{}) {
	std.write(INFO, l.component, msg, fields)
}

func (l *Logger) Warn(msg string, fields ...interface{}) {
	std.write(WARN, l.component, msg, fields)
}

func (l *Logger) Error(msg string, fields ...interface{}) {
	std.write(ERROR, l.component, msg, fields)
}

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { std.write(DEBUG, "", msg, fields) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { std.write(INFO, "", msg, fields) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { std.write(WARN, "", msg, fields) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { std.write(ERROR, "", msg, fields) }

func (s *sink) write(level Level, component, msg string, fields []interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if level < s.level {
		return
	}

	entry := map[string]interface{}{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": levelNames[level],
		"msg":   msg,
	}
	if component != "" {
		entry["component"] = component
	}

	// Fields are key/value pairs; a trailing key without value is dropped.
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		val := fmt.Sprintf("%v", fields[i+1])
		if s.redactPII {
			val = redactValue(key, val)
		}
		entry[key] = val
	}

	data, _ := json.Marshal(entry)
	fmt.Fprintln(s.out, string(data))
}
