package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "omegacache.log")
	l, err := New(Options{Level: "debug", File: path})
	require.NoError(t, err)

	l.Debug("hola")
	_ = l.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(raw, &line))
	assert.Equal(t, "hola", line["msg"])
	assert.Equal(t, "debug", line["level"])
	assert.Contains(t, line, "ts")
}

func TestLogger_NopBeforeInit(t *testing.T) {
	assert.NotNil(t, Logger())
	assert.NotNil(t, Sugar())
}

func TestInit_ReplacesGlobal(t *testing.T) {
	require.Error(t, Init(Options{Level: "loud"}))
	require.NoError(t, Init(Options{Level: "warn"}))
	assert.False(t, Logger().Core().Enabled(zapcore.DebugLevel))
	assert.True(t, Logger().Core().Enabled(zapcore.WarnLevel))
}
