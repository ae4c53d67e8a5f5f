package logger

import (
	"os"
	"sort"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// Fields are the structured attributes attached to a log line.
type Fields = map[string]interface{}

// Logger defines the minimal logging interface used across the portal.
type Logger interface {
	Debug(msg string, fields Fields)
	Info(msg string, fields Fields)
	Warn(msg string, fields Fields)
	Error(msg string, fields Fields)
	WithFields(fields Fields) Logger
	WithError(err error) Logger
}

// ParseLevel maps a configured level name onto zap, falling back to info.
func ParseLevel(name string) zapcore.Level {
	if name == "warning" {
		return zapcore.WarnLevel
	}
	lvl, err := zapcore.ParseLevel(name)
	if err != nil || lvl > zapcore.ErrorLevel {
		return zapcore.InfoLevel
	}
	return lvl
}

// New builds the process logger. Format "json" writes one object per line;
// anything else writes the human readable console layout.
func New(level, format string, base ...zap.Field) *zap.Logger {
	enc := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if format == "json" {
		encoder = zapcore.NewJSONEncoder(enc)
	} else {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(enc)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(ParseLevel(level)))
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).With(base...)
}

type portalLogger struct {
	z *zap.Logger
}

func (p *portalLogger) Debug(msg string, fields Fields) { p.z.Debug(msg, toZap(fields)...) }
func (p *portalLogger) Info(msg string, fields Fields)  { p.z.Info(msg, toZap(fields)...) }
func (p *portalLogger) Warn(msg string, fields Fields)  { p.z.Warn(msg, toZap(fields)...) }
func (p *portalLogger) Error(msg string, fields Fields) { p.z.Error(msg, toZap(fields)...) }

func (p *portalLogger) WithFields(fields Fields) Logger {
	if len(fields) == 0 {
		return p
	}
	return &portalLogger{z: p.z.With(toZap(fields)...)}
}

func (p *portalLogger) WithError(err error) Logger {
	if err == nil {
		return p
	}
	return &portalLogger{z: p.z.With(zap.Error(err))}
}

// toZap converts fields in key order so repeated lines encode identically.
func toZap(fields Fields) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, len(keys))
	for i, k := range keys {
		if err, ok := fields[k].(error); ok {
			out[i] = zap.NamedError(k, err)
			continue
		}
		out[i] = zap.Any(k, fields[k])
	}
	return out
}

// NewZapAdapter exposes l through the Logger interface.
func NewZapAdapter(l *zap.Logger) Logger {
	return &portalLogger{z: l}
}

// NewTestLogger routes output through t.Log.
func NewTestLogger(t testing.TB) Logger {
	return &portalLogger{z: zaptest.NewLogger(t, zaptest.Level(zapcore.DebugLevel))}
}

func NewNoOpLogger() Logger {
	return &portalLogger{z: zap.NewNop()}
}
