// Package logging provides structured logging for LifeScore, backed by zap.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents log level
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zap() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel parses a level name such as "debug" or "WARN"
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", s)
}

// Logger is a structured logger
type Logger struct {
	sugar  *zap.SugaredLogger
	fields map[string]interface{}
}

var mu sync.Mutex

var (
	atomicLevel  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	outputWriter = io.Writer(os.Stdout)
	jsonOutput   = false

	defaultLogger = build()
)

func build() *Logger {
	return New(outputWriter, atomicLevel, jsonOutput)
}

// New creates a logger writing to w. JSON output is meant for production,
// console output for development.
func New(w io.Writer, level zap.AtomicLevel, json bool) *Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")

	var enc zapcore.Encoder
	if json {
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	return &Logger{
		sugar:  zap.New(core).Sugar(),
		fields: make(map[string]interface{}),
	}
}

// Configure selects the output mode ("prod"/"production" for JSON) and level
func Configure(mode string, level Level) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToLower(mode) {
	case "prod", "production":
		jsonOutput = true
	default:
		jsonOutput = false
	}
	atomicLevel.SetLevel(level.zap())
	defaultLogger = build()
}

// Default returns the package-level logger
func Default() *Logger {
	mu.Lock()
	defer mu.Unlock()
	return defaultLogger
}

// SetLevel sets the global log level
func SetLevel(level Level) {
	atomicLevel.SetLevel(level.zap())
}

// GetLevel returns the global log level
func GetLevel() Level {
	switch atomicLevel.Level() {
	case zapcore.DebugLevel:
		return DEBUG
	case zapcore.WarnLevel:
		return WARN
	case zapcore.ErrorLevel:
		return ERROR
	default:
		return INFO
	}
}

// SetOutput sets the output writer
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	outputWriter = w
	defaultLogger = build()
}

// WithField returns a logger with a field added
func WithField(key string, value interface{}) *Logger {
	return Default().WithField(key, value)
}

// WithFields returns a logger with multiple fields added
func WithFields(fields map[string]interface{}) *Logger {
	return Default().WithFields(fields)
}

// WithField adds a field to the logger
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields adds multiple fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}

	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		merged[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]interface{}, 0, len(keys)*2)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}

	return &Logger{
		sugar:  l.sugar.With(args...),
		fields: merged,
	}
}

// Fields returns a copy of the logger's fields
func (l *Logger) Fields() map[string]interface{} {
	out := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		out[k] = v
	}
	return out
}

// Sync flushes buffered output
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

// Debug logs a debug message
func Debug(msg string, args ...interface{}) {
	Default().sugar.Debugf(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...interface{}) {
	Default().sugar.Infof(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...interface{}) {
	Default().sugar.Warnf(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...interface{}) {
	Default().sugar.Errorf(msg, args...)
}

// Logger methods
func (l *Logger) Debug(msg string, args ...interface{}) { l.sugar.Debugf(msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.sugar.Infof(msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.sugar.Warnf(msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.sugar.Errorf(msg, args...) }
