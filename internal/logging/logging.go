package logging

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

var levelNames = map[Level]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

var zeroLevels = map[Level]zerolog.Level{
	LevelDebug: zerolog.DebugLevel,
	LevelInfo:  zerolog.InfoLevel,
	LevelWarn:  zerolog.WarnLevel,
	LevelError: zerolog.ErrorLevel,
}

func (l Level) String() string { return levelNames[l] }

// ParseLevel maps a level name (debug, info, warn, error) to a Level.
func ParseLevel(s string) (Level, error) {
	for lvl, name := range levelNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return lvl, nil
		}
	}
	if strings.EqualFold(strings.TrimSpace(s), "warning") {
		return LevelWarn, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
}

// Logger writes structured JSON lines with a fixed set of base fields.
type Logger struct {
	zl zerolog.Logger
}

var (
	mu            sync.RWMutex
	defaultLogger *Logger
)

func init() {
	zerolog.TimestampFieldName = "ts"
	zerolog.LevelFieldName = "lvl"
	zerolog.MessageFieldName = "msg"
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

func Init(w io.Writer, lvl Level, baseFields map[string]interface{}) {
	if w == nil {
		w = os.Stderr
	}
	ctx := zerolog.New(w).Level(zeroLevels[lvl]).With().Timestamp()
	if len(baseFields) > 0 {
		ctx = ctx.Fields(baseFields)
	}
	mu.Lock()
	defaultLogger = &Logger{zl: ctx.Logger()}
	mu.Unlock()
}

func current() *Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l == nil {
		Init(nil, LevelInfo, nil)
		mu.RLock()
		l = defaultLogger
		mu.RUnlock()
	}
	return l
}

// WithFields returns a logger that adds fields to every entry it writes.
func WithFields(fields map[string]interface{}) *Logger {
	l := current()
	if len(fields) == 0 {
		return l
	}
	return &Logger{zl: l.zl.With().Fields(fields).Logger()}
}

func (l *Logger) log(ev *zerolog.Event, msg string, extra map[string]interface{}) {
	if ev == nil {
		return
	}
	if len(extra) > 0 {
		ev = ev.Fields(extra)
	}
	ev.Msg(msg)
}

func (l *Logger) Debug(msg string, extra map[string]interface{}) { l.log(l.zl.Debug(), msg, extra) }
func (l *Logger) Info(msg string, extra map[string]interface{})  { l.log(l.zl.Info(), msg, extra) }
func (l *Logger) Warn(msg string, extra map[string]interface{})  { l.log(l.zl.Warn(), msg, extra) }
func (l *Logger) Error(msg string, extra map[string]interface{}) { l.log(l.zl.Error(), msg, extra) }

// Top-level convenience wrappers
func Debug(msg string, extra map[string]interface{}) { current().Debug(msg, extra) }
func Info(msg string, extra map[string]interface{})  { current().Info(msg, extra) }
func Warn(msg string, extra map[string]interface{})  { current().Warn(msg, extra) }
func Error(msg string, extra map[string]interface{}) { current().Error(msg, extra) }
