package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"ProductionJSON", Config{Level: "info", Format: "json"}},
		{"DevelopmentConsole", Config{Level: "debug", Format: "console"}},
		{"WarnLevel", Config{Level: "warn", Format: "json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(&tt.cfg)
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestNew_WarnLevelDisablesInfo(t *testing.T) {
	l, err := New(&Config{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestWithRun(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := WithRun(zap.New(core), "run-1", "fast")
	l.Info("hello")

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "run-1", ctx["run_id"])
	assert.Equal(t, "fast", ctx["tier"])

	core2, logs2 := observer.New(zapcore.InfoLevel)
	WithRun(zap.New(core2), "run-2", "").Info("no tier")
	_, hasTier := logs2.All()[0].ContextMap()["tier"]
	assert.False(t, hasTier)
}
