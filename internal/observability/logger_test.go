package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		enabled zapcore.Level
	}{
		{"json info", "info", "json", zapcore.InfoLevel},
		{"console debug", "debug", "console", zapcore.DebugLevel},
		{"upper case level", "WARN", "json", zapcore.WarnLevel},
		{"defaults", "", "", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.level, tt.format)
			require.NoError(t, err)
			require.NotNil(t, logger)
			defer logger.Sync()

			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.enabled-1))
		})
	}
}

func TestNewLogger_Invalid(t *testing.T) {
	logger, err := NewLogger("loud", "json")
	assert.Nil(t, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")

	logger, err = NewLogger("info", "xml")
	assert.Nil(t, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log format")
}
