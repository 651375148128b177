// Package logger is the console's leveled, colored log output. Each
// component gets its own named logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps LOG_LEVEL values; unknown input means info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

var (
	mu       sync.RWMutex
	minLevel = LevelInfo
	out      io.Writer = color.Output
)

// SetLevel sets the process-wide minimum level.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = l
}

// SetOutput redirects every logger, mostly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	out = w
}

type Logger struct {
	component string
}

func New(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) write(level Level, label string, c *color.Color, msg string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if level < minLevel {
		return
	}
	line := fmt.Sprintf("%s | %s | [%s] %s",
		time.Now().Format("2006-01-02 15:04:05"),
		label,
		l.component,
		fmt.Sprintf(msg, args...),
	)
	c.Fprintln(out, line)
}

var (
	debugColor   = color.New(color.FgMagenta)
	infoColor    = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
)

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.write(LevelDebug, "DEBUG", debugColor, msg, args...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.write(LevelInfo, "INFO", infoColor, msg, args...)
}

func (l *Logger) Success(msg string, args ...interface{}) {
	l.write(LevelInfo, "SUCCESS", successColor, msg, args...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.write(LevelWarn, "WARN", warnColor, msg, args...)
}

// Error logs err and returns it wrapped with msg.
func (l *Logger) Error(msg string, err error) error {
	l.write(LevelError, "ERROR", errorColor, "%s: %v", msg, err)
	return fmt.Errorf("%s: %w", msg, err)
}

// Request logs an outbound API call.
func (l *Logger) Request(method, url string) {
	l.Debug("%s %s", method, url)
}

// Response logs an outbound call's outcome.
func (l *Logger) Response(status int, d time.Duration, results int) {
	l.Debug("response status=%d duration=%dms results=%d", status, d.Milliseconds(), results)
}
