package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_Fields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapLoggerFrom(zap.New(core))

	l.Info("payment accepted", map[string]any{"route": "/weather", "err": errors.New("boom")})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "payment accepted", entries[0].Message)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "/weather", ctx["route"])
	assert.Equal(t, "boom", ctx["err"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestWith_MergesBaseFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := With(NewZapLoggerFrom(zap.New(core)), map[string]any{"component": "settlement", "route": "base"})

	l.Warn("retry", map[string]any{"route": "/weather"})
	l.Debug("no fields", nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "settlement", ctx["component"])
	assert.Equal(t, "/weather", ctx["route"])
	assert.Equal(t, "settlement", entries[1].ContextMap()["component"])
}

func TestWith_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		With(nil, map[string]any{"a": 1}).Error("x", nil)
	})
}
