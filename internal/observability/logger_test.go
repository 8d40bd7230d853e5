package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/webpilot/internal/config"
)

func TestInitializeIsIdempotent(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	core, _ := observer.New(zapcore.DebugLevel)
	writer := zapcore.AddSync(&discardSyncer{})

	Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "test"}, writer)
	first := GetLogger()
	require.NotNil(t, first)

	// A second Initialize must not replace the stored logger.
	Initialize(config.LoggerConfig{Level: "error", Format: "console", ServiceName: "other"}, zapcore.AddSync(&discardSyncer{}))
	assert.Same(t, first, GetLogger())

	_ = core // observer core kept for parity with other logging tests
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
	assert.NotEqual(t, zap.NewNop(), logger)
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	Initialize(config.LoggerConfig{Level: "not-a-level", Format: "json", ServiceName: "test"},
		zapcore.AddSync(&discardSyncer{}))
	logger := GetLogger()
	require.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

// discardSyncer is a WriteSyncer that swallows all output.
type discardSyncer struct{}

func (d *discardSyncer) Write(p []byte) (int, error) { return len(p), nil }
func (d *discardSyncer) Sync() error                 { return nil }
