package ped

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel type defines the severity of a log message.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelNone // Disables logging
)

// LevelToString maps LogLevel to its string representation.
var LevelToString = map[LogLevel]string{
	LevelDebug:   "DEBUG",
	LevelInfo:    "INFO",
	LevelWarning: "WARNING",
	LevelError:   "ERROR",
	LevelNone:    "NONE",
}

// StringToLevel maps string representation of LogLevel to its value.
var StringToLevel = map[string]LogLevel{
	"DEBUG":   LevelDebug,
	"INFO":    LevelInfo,
	"WARNING": LevelWarning,
	"ERROR":   LevelError,
	"NONE":    LevelNone,
}

// DefaultLogPath is the process-wide log file named in §6's configuration
// constants table.
const DefaultLogPath = "ngenius.log"

// Logger is a leveled, injectable append-only sink. A process normally
// shares a single Logger across every Session/Engine it owns (§5: "a
// single process-wide append-only log file receives every SEND/RECV/ERROR
// line"); tests and embedders may inject their own io.WriteCloser instead.
type Logger struct {
	mu         sync.Mutex
	level      LogLevel
	output     io.WriteCloser
	timeFormat string
	prefix     string
}

// NewLogger creates a Logger writing to output at the given level. If
// output is nil it defaults to os.Stdout.
func NewLogger(output io.WriteCloser, level LogLevel, prefix string) *Logger {
	if output == nil {
		output = os.Stdout
	}
	return &Logger{
		level:      level,
		output:     output,
		timeFormat: time.RFC3339,
		prefix:     prefix,
	}
}

// NewFileLogger opens (or creates) path in append mode and returns a
// Logger writing to it — the ambient sink described in Design Notes §9.
func NewFileLogger(path string, level LogLevel) (*Logger, error) {
	if path == "" {
		path = DefaultLogPath
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("ped: open log file %s: %w", path, err)
	}
	return NewLogger(f, level, "ped"), nil
}

// SetLevel sets the logging level of the Logger.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current logging level of the Logger.
func (l *Logger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetLevelFromString sets the logging level from a string representation (e.g., "DEBUG").
func (l *Logger) SetLevelFromString(levelStr string) error {
	levelStrUpper := strings.ToUpper(levelStr)
	if level, ok := StringToLevel[levelStrUpper]; ok {
		l.SetLevel(level)
		return nil
	}
	return fmt.Errorf("invalid log level: %s. Available levels: %v", levelStr, getAvailableLevels())
}

func getAvailableLevels() []string {
	levels := make([]string, 0, len(StringToLevel))
	for levelStr := range StringToLevel {
		levels = append(levels, levelStr)
	}
	return levels
}

// write is the shared formatter behind Debugf/Infof/Warnf/Errorf.
func (l *Logger) write(level LogLevel, format string, args ...any) {
	if l == nil {
		return
	}
	if level < l.GetLevel() || l.GetLevel() == LevelNone {
		return
	}
	message := fmt.Sprintf(format, args...)
	l.mu.Lock()
	defer l.mu.Unlock()
	timestamp := time.Now().Format(l.timeFormat)
	levelStr := LevelToString[level]
	line := fmt.Sprintf("%s [%s] <%s> %s\n", timestamp, levelStr, l.prefix, strings.TrimSpace(message))
	_, _ = l.output.Write([]byte(line))
}

func (l *Logger) Debugf(format string, args ...any) { l.write(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)   { l.write(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)   { l.write(LevelWarning, format, args...) }
func (l *Logger) Errorf(format string, args ...any)  { l.write(LevelError, format, args...) }

// Send logs the §4.1 "SEND: <line>" contract line.
func (l *Logger) Send(line string) { l.Infof("SEND: %s", line) }

// Recv logs the §4.1 "RECV: <payload>" contract line, and additionally
// logs "ERROR: <payload>" whenever the raw reply contains "error", per
// the same logging contract.
func (l *Logger) Recv(payload string) {
	l.Infof("RECV: %s", payload)
	if strings.Contains(payload, "error") {
		l.Errorf("ERROR: %s", payload)
	}
}

// Close implements the io.Closer interface. It closes the underlying output if it's not os.Stdout.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if closer, ok := l.output.(io.Closer); ok && l.output != os.Stdout {
		return closer.Close()
	}
	return nil
}

// discardLogger is used when no Logger is supplied so call sites never
// need a nil check.
var discardLogger = NewLogger(nopWriteCloser{io.Discard}, LevelNone, "ped")

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
