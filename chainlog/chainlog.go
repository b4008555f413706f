// Package chainlog is a minimal leveled wrapper around the standard
// library's log.Logger, completing the seam the teacher's node.Config
// leaves open: its "log_level" field is validated against
// debug/info/warn/error but never wired to an actual logger.
package chainlog

import (
	"fmt"
	"io"
	"log"
	"strings"
)

// Level is one of the four levels the teacher's config validation already
// names.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel parses one of "debug"/"info"/"warn"/"error" case-insensitively,
// defaulting to LevelInfo for anything else.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Logger writes level-prefixed lines through a stdlib *log.Logger, dropping
// anything below its configured threshold.
type Logger struct {
	out       *log.Logger
	threshold Level
}

// New builds a Logger writing to w at the given threshold. Every line carries
// the standard log.LstdFlags date and time prefix.
func New(w io.Writer, threshold Level) *Logger {
	return &Logger{out: log.New(w, "", log.LstdFlags), threshold: threshold}
}

func (l *Logger) logf(level Level, format string, args ...any) {
	if level < l.threshold {
		return
	}
	l.out.Printf("[%s] %s", level, fmt.Sprintf(format, args...))
}

func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }
