package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.InfoLevel},
		{"bogus", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.name))
		})
	}
}

func TestNew_HonoursLevel(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		l := New("warn", format, zap.String("service", "recruit-portal"))
		assert.True(t, l.Core().Enabled(zapcore.WarnLevel), format)
		assert.False(t, l.Core().Enabled(zapcore.InfoLevel), format)
	}
}

func TestPortalLogger_FieldsAndError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core))

	log.WithFields(Fields{"operation": "listJobs"}).
		WithError(errors.New("boom")).
		Warn("backend call failed", Fields{"attempt": 2, "cause": errors.New("timeout")})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "backend call failed", entries[0].Message)
		assert.Equal(t, "listJobs", ctx["operation"])
		assert.Equal(t, "boom", ctx["error"])
		assert.Equal(t, "timeout", ctx["cause"])
		assert.EqualValues(t, 2, ctx["attempt"])
	}
}

func TestPortalLogger_FieldOrderIsStable(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core))

	log.Info("session started", Fields{"role": "hr", "user_id": "u-1", "exam": "e-9"})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		var keys []string
		for _, f := range entries[0].Context {
			keys = append(keys, f.Key)
		}
		assert.Equal(t, []string{"exam", "role", "user_id"}, keys)
	}
}

func TestPortalLogger_EmptyDerivationsReuseParent(t *testing.T) {
	log := NewNoOpLogger()
	assert.Same(t, log, log.WithFields(nil))
	assert.Same(t, log, log.WithError(nil))
	assert.NotPanics(t, func() {
		log.Info("nothing", nil)
		log.WithFields(Fields{"k": "v"}).Debug("still nothing", nil)
	})
}
