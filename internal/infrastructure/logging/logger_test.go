package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestDefaultConfigWritesToStderr(t *testing.T) {
	assert.Equal(t, []string{"stderr"}, DefaultConfig().OutputPaths)
	assert.Equal(t, []string{"stderr"}, DevelopmentConfig().OutputPaths)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		dev     bool
		wantErr bool
	}{
		{name: "info production", level: "info"},
		{name: "debug development", level: "debug", dev: true},
		{name: "warn", level: "warn"},
		{name: "bogus level", level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(Config{Level: tt.level, Development: tt.dev})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
			logger.Debug("logger ready", zap.String("level", tt.level))
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := parseLevel("error")
	require.NoError(t, err)
	assert.Equal(t, zapcore.ErrorLevel, level)

	level, err = parseLevel("nope")
	assert.Error(t, err)
	assert.Equal(t, zapcore.InfoLevel, level)
}

func TestChildLoggers(t *testing.T) {
	logger := NewNop()
	assert.NotNil(t, logger.Named("bridge"))
	assert.NotNil(t, logger.With(zap.String("trace_id", "req_1")))
}

func TestNewWritesToConfiguredPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	logger, err := New(Config{Level: "info", OutputPaths: []string{path}})
	require.NoError(t, err)

	logger.Named("bridge").Info("Request completed", zap.String("status", "ready"))
	logger.Debug("suppressed")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"message":"Request completed"`)
	assert.Contains(t, out, `"logger":"bridge"`)
	assert.Contains(t, out, `"status":"ready"`)
	assert.NotContains(t, out, "suppressed")
}
