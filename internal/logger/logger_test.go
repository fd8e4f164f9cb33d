package logger

import (
	"testing"

	"github.com/honesta/lostfound-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_Level(t *testing.T) {
	tests := []struct {
		name  string
		level string
		env   string
		want  zapcore.Level
	}{
		{"debug in development", "debug", "development", zapcore.DebugLevel},
		{"warn in production", "warn", "production", zapcore.WarnLevel},
		{"unknown level falls back to info", "loud", "development", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := NewLogger(&config.LoggingConfig{Level: tt.level, Format: "console"}, &config.AppConfig{Name: "honesta", Environment: tt.env})
			require.NoError(t, err)
			assert.True(t, log.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, log.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestWithRequest(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	WithRequest(zap.New(core), "POST", "/api/v1/items", "req-1").Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/api/v1/items", fields["path"])
	assert.Equal(t, "req-1", fields["request_id"])
}
