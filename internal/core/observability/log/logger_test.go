package log

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(level Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return FromZap(zap.New(core), level), logs
}

func TestLevelGate(t *testing.T) {
	l, logs := observed(LevelWarn)
	l.Debug("dropped")
	l.Info("dropped")
	l.Warn("kept")
	l.Error("kept")
	assert.Equal(t, 2, logs.Len())

	l.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, l.GetLevel())
	l.Debug("now kept")
	assert.Equal(t, 3, logs.Len())

	l.SetLevel(LevelNone)
	l.Error("dropped")
	l.Log(LevelNone, "dropped")
	assert.Equal(t, 3, logs.Len())
}

func TestWithSharesLevelAndAddsFields(t *testing.T) {
	l, logs := observed(LevelInfo)
	child := l.With(String("component", "hooks"))
	child.Info("installed", Int("rules", 2), Strings("points", []string{"a"}), Error(errors.New("x")))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "hooks", fields["component"])
	assert.Equal(t, int64(2), fields["rules"])
	assert.Equal(t, "x", fields["error"])

	l.SetLevel(LevelError)
	child.Info("dropped")
	assert.Equal(t, 1, logs.Len(), "children follow the parent level")
}

func TestFieldConversion(t *testing.T) {
	l, logs := observed(LevelDebug)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	l.Info("all",
		Bool("b", true),
		Duration("d", time.Second),
		Float64("f", 0.5),
		Int64("i64", -3),
		Time("t", at),
		Uint64("u64", 7),
		Uint16("u16", 9),
		ErrorWithKey("cause", errors.New("y")),
		Any("any", map[string]int{"k": 1}),
	)
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, true, fields["b"])
	assert.Equal(t, time.Second, fields["d"])
	assert.Equal(t, 0.5, fields["f"])
	assert.Equal(t, int64(-3), fields["i64"])
	assert.Equal(t, at, fields["t"])
	assert.Equal(t, uint64(7), fields["u64"])
	assert.Equal(t, uint16(9), fields["u16"])
	assert.Equal(t, "y", fields["cause"])
	assert.Equal(t, map[string]int{"k": 1}, fields["any"])
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"debug": LevelDebug,
		"info":  LevelInfo,
		"warn":  LevelWarn,
		"error": LevelError,
		"none":  LevelNone,
		"bogus": LevelInfo,
	} {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNopDropsEverything(t *testing.T) {
	n := Nop()
	n.Error("nothing")
	assert.Equal(t, LevelNone, n.GetLevel())
}
