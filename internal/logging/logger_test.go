package logging

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestGetLogLevel(t *testing.T) {
	assert.Equal(t, DEBUG, GetLogLevel("debug"))
	assert.Equal(t, INFO, GetLogLevel("info"))
	assert.Equal(t, WARN, GetLogLevel("warn"))
	assert.Equal(t, WARN, GetLogLevel("WARNING"))
	assert.Equal(t, ERROR, GetLogLevel("error"))
	assert.Equal(t, INFO, GetLogLevel("unknown"))
	assert.Equal(t, INFO, GetLogLevel(""))
}

func TestLogLevelToZap(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, logLevelToZap(DEBUG))
	assert.Equal(t, zapcore.InfoLevel, logLevelToZap(INFO))
	assert.Equal(t, zapcore.WarnLevel, logLevelToZap(WARN))
	assert.Equal(t, zapcore.ErrorLevel, logLevelToZap(ERROR))
	assert.Equal(t, zapcore.InfoLevel, logLevelToZap(LogLevel(99)))
}

func TestLoggerDoesNotPanic(t *testing.T) {
	logger := NewLogger(ERROR, "test")
	require.NotNil(t, logger)

	logger.Debug("debug message")
	logger.Info("info with args: %s", "value")
	logger.Warn("warn message")
	logger.Error("error with args: %d", 42)
	logger.ProjectInfo("DefaultCollection/Alpha", "resolved")
	logger.ProjectWarn("DefaultCollection/Alpha", "skipped", fmt.Errorf("boom"))
	logger.With(zap.String("scan_id", "test")).Info("scoped")
	logger.Sync()
}

func TestInitLogger(t *testing.T) {
	InitLogger("debug", "test")
	require.NotNil(t, GetLogger())

	Info("global info")
	Warn("global warn")
	Error("global error")
}
