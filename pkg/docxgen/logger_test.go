package docxgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestGetLogger_SilentByDefault(t *testing.T) {
	logger := GetLogger()
	require.NotNil(t, logger)
	assert.False(t, logger.Core().Enabled(zapcore.ErrorLevel))
}

func TestEnableLogging(t *testing.T) {
	defer SetLogger(nil)

	require.NoError(t, EnableLogging("console"))
	assert.True(t, GetLogger().Core().Enabled(zapcore.ErrorLevel))

	SetLogger(nil)
	assert.False(t, GetLogger().Core().Enabled(zapcore.ErrorLevel))
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "loud", Format: "json"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}
