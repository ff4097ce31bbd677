// Package logx provides the process-wide diagnostic sink for the coaching
// engine: leveled loggers with a shared in-memory buffer of recent entries
// and an explicitly managed log file lifecycle.
package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level is the severity of a log line.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Entry is one structured line captured by the sink.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Name      string `json:"name"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

const bufferCap = 1000

// Shared sink state. Loggers are cheap handles onto this.
var (
	sinkMu       sync.Mutex
	sinkOut      io.Writer = os.Stderr
	sinkFile     *os.File
	debugEnabled = false

	bufMu   sync.RWMutex
	entries []Entry
)

func init() { //nolint:gochecknoinits // env var initialization, matches DEBUG=1 convention
	if d := os.Getenv("DEBUG"); d == "1" || strings.EqualFold(d, "true") {
		debugEnabled = true
	}
}

// Init opens a dated log file under logDir and routes all subsequent log
// output to it. With tee set, lines also go to stderr. Call Close at
// shutdown. Without Init the sink writes to stderr only.
func Init(logDir string, tee bool) error {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	name := fmt.Sprintf("coach_%s.log", time.Now().UTC().Format("20060102"))
	f, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	sinkMu.Lock()
	defer sinkMu.Unlock()
	sinkFile = f
	if tee {
		sinkOut = io.MultiWriter(os.Stderr, f)
	} else {
		sinkOut = f
	}
	return nil
}

// Close flushes and closes the log file, restoring stderr output.
func Close() error {
	sinkMu.Lock()
	defer sinkMu.Unlock()

	sinkOut = os.Stderr
	if sinkFile == nil {
		return nil
	}
	err := sinkFile.Close()
	sinkFile = nil
	return err
}

// SetDebug toggles debug-level output for the whole process.
func SetDebug(enabled bool) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	debugEnabled = enabled
}

// Logger writes leveled lines tagged with a component name.
type Logger struct {
	name string
}

// NewLogger creates a logger handle for the named component
// (e.g. a session ID or a package name).
func NewLogger(name string) *Logger {
	return &Logger{name: name}
}

// Name returns the component name this logger is tagged with.
func (l *Logger) Name() string {
	return l.name
}

func (l *Logger) log(level Level, format string, args ...any) {
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	message := fmt.Sprintf(format, args...)

	sinkMu.Lock()
	fmt.Fprintf(sinkOut, "[%s] [%s] %s: %s\n", timestamp, l.name, level, message)
	sinkMu.Unlock()

	bufMu.Lock()
	entries = append(entries, Entry{
		Timestamp: timestamp,
		Name:      l.name,
		Level:     string(level),
		Message:   message,
	})
	if len(entries) > bufferCap {
		entries = entries[len(entries)-bufferCap:]
	}
	bufMu.Unlock()
}

func (l *Logger) Debug(format string, args ...any) {
	sinkMu.Lock()
	enabled := debugEnabled
	sinkMu.Unlock()
	if !enabled {
		return
	}
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

// RecentEntries returns buffered entries at or after since. A zero time
// returns the whole buffer.
func RecentEntries(since time.Time) []Entry {
	bufMu.RLock()
	defer bufMu.RUnlock()

	out := make([]Entry, 0, len(entries))
	for i := range entries {
		if !since.IsZero() {
			ts, err := time.Parse("2006-01-02T15:04:05.000Z", entries[i].Timestamp)
			if err != nil || ts.Before(since) {
				continue
			}
		}
		out = append(out, entries[i])
	}
	return out
}

// Default logger for package-level convenience functions.
var defaultLogger = NewLogger("system")

func Infof(format string, args ...any) {
	defaultLogger.Info(format, args...)
}

func Warnf(format string, args ...any) {
	defaultLogger.Warn(format, args...)
}

// Wrap logs msg + ": " + err and returns the wrapped error. Returns nil
// when err is nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s: %w", msg, err)
	defaultLogger.Error("%s", wrapped.Error())
	return wrapped
}
