package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_ENCODING", "json")

	cfg := FromEnv()
	assert.False(t, cfg.Development)
	assert.Equal(t, "warn", cfg.Level)
	assert.Equal(t, "json", cfg.Encoding)
	assert.Equal(t, DefaultName, cfg.Name)

	t.Setenv("APP_ENV", "")
	assert.True(t, FromEnv().Development)
}

func TestNew_Level(t *testing.T) {
	l, err := New(Config{Level: "WARN", Encoding: "json"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestNew_Rejects(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Config{Encoding: "xml"})
	assert.Error(t, err)
}

func TestNew_Named(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l, err := New(Config{Encoding: "console", Name: "share"})
	require.NoError(t, err)

	// Names survive core replacement, so assert through an observed core.
	l = l.WithOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core { return core }))
	l.Info("created")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "share", logs.All()[0].LoggerName)
}

func TestMustInit_ReplacesGlobals(t *testing.T) {
	l := MustInit(Config{Encoding: "json", Level: "error"})
	assert.Same(t, l, zap.L())
	assert.NoError(t, Sync())
}
