package logging_test

import (
	"testing"

	"github.com/goliatone/go-membership/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerKeyValues(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := logging.NewZapLogger(zap.New(core)).Named("registration")

	logger.Info("account registered", "account_id", "abc", "username", "carolinemx")
	logger.Warn("activity sink error", "error", "boom")

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, "account registered", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "registration", entries[0].LoggerName)
	assert.Equal(t, "abc", entries[0].ContextMap()["account_id"])
	assert.Equal(t, "carolinemx", entries[0].ContextMap()["username"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestZapLoggerRespectsLevel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := logging.NewZapLogger(zap.New(core))

	logger.Debug("hidden")
	logger.Error("shown")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "shown", logs.All()[0].Message)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		opts logging.Options
		want zapcore.Level
	}{
		{name: "production default", opts: logging.Options{}, want: zapcore.InfoLevel},
		{name: "production warn", opts: logging.Options{Level: "WARN"}, want: zapcore.WarnLevel},
		{name: "development debug", opts: logging.Options{Level: "debug", Dev: true}, want: zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := logging.New(tt.opts)
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, l.Core().Enabled(tt.want-1))
			}
		})
	}

	t.Run("nil logger", func(t *testing.T) {
		assert.NotPanics(t, func() {
			logging.NewZapLogger(nil).Info("noop")
		})
	})
}
