// Package logger is the process-wide leveled logger.
//
// Call sites use printf-style helpers; output is produced by zerolog, either
// as human readable console lines or as JSON objects.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level int

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
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Config selects level, format and destination.
type Config struct {
	// Level is DEBUG, INFO, WARN or ERROR.
	Level string

	// Format is "text" (console) or "json".
	Format string

	// Output is "stdout", "stderr" or a file path.
	Output string
}

var (
	mu           sync.RWMutex
	currentLevel = LevelInfo
	log          = newLogger(os.Stdout, "text")
	closer       io.Closer
)

func newLogger(w io.Writer, format string) zerolog.Logger {
	if strings.EqualFold(format, "json") {
		return zerolog.New(w).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.DateTime,
		NoColor:    w != os.Stdout && w != os.Stderr,
	}).With().Timestamp().Logger()
}

func parseLevel(level string) (Level, bool) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	}
	return LevelInfo, false
}

// SetLevel changes the minimum level. Unknown names are ignored.
func SetLevel(level string) {
	l, ok := parseLevel(level)
	if !ok {
		return
	}
	mu.Lock()
	currentLevel = l
	log = log.Level(l.zerolog())
	mu.Unlock()
}

// SetOutput redirects output to w using the given format.
func SetOutput(w io.Writer, format string) {
	mu.Lock()
	defer mu.Unlock()
	log = newLogger(w, format).Level(currentLevel.zerolog())
}

// Configure applies cfg. A file output is opened in append mode and closed
// on the next Configure call.
func Configure(cfg Config) error {
	level, ok := parseLevel(cfg.Level)
	if !ok && cfg.Level != "" {
		return fmt.Errorf("unknown log level %q", cfg.Level)
	}

	var (
		w io.Writer
		c io.Closer
	)
	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		w, c = f, f
	}

	mu.Lock()
	prev := closer
	currentLevel = level
	log = newLogger(w, cfg.Format).Level(level.zerolog())
	closer = c
	mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

func emit(level Level, format string, v ...any) {
	mu.RLock()
	if level < currentLevel {
		mu.RUnlock()
		return
	}
	l := log
	mu.RUnlock()

	l.WithLevel(level.zerolog()).Msg(fmt.Sprintf(format, v...))
}

func Debug(format string, v ...any) {
	emit(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	emit(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	emit(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	emit(LevelError, format, v...)
}
