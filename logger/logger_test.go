package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("trace"))
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestNew(t *testing.T) {
	l, err := New("info", "json")
	require.NoError(t, err)
	require.NotNil(t, l.SugaredLogger)

	l, err = New("debug", "text")
	require.NoError(t, err)
	require.NotNil(t, l.SugaredLogger)
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).With("group", "g1")

	l.Info("device started", "device", "d1")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "device started", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "g1", fields["group"])
	assert.Equal(t, "d1", fields["device"])
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Debug("ignored")
	l.Error("ignored", "k", "v")
}

func TestSetLevel(t *testing.T) {
	l, err := New("info", "json")
	require.NoError(t, err)
	child := l.With("component", "test")

	assert.False(t, child.SugaredLogger.Desugar().Core().Enabled(zapcore.DebugLevel))
	require.True(t, l.SetLevel("debug"))
	assert.True(t, child.SugaredLogger.Desugar().Core().Enabled(zapcore.DebugLevel))

	assert.False(t, Nop().SetLevel("debug"))
}
