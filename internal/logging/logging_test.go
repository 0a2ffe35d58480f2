package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelfs/ransomwatch/internal/conf"
)

func testLogSettings(logConf conf.LogConfig) *conf.Settings {
	s := &conf.Settings{}
	s.Main.Log = logConf
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = ":memory:"
	return s
}

func TestNewFileLoggerWritesJSON(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ransomwatch.log")
	conf.SetTestSettings(testLogSettings(conf.LogConfig{
		Enabled:  true,
		Path:     logPath,
		Rotation: conf.RotationDaily,
	}))

	logger, closeLog, err := NewFileLogger(logPath, "serve", slog.LevelInfo)
	require.NoError(t, err)

	logger.Info("engine started", "port", "8080")
	require.NoError(t, closeLog())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "engine started", entry["msg"])
	assert.Equal(t, "serve", entry["service"])
	assert.Equal(t, "8080", entry["port"])
}

func TestNewFileLoggerCreatesDirectory(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "nested", "ransomwatch.log")
	conf.SetTestSettings(testLogSettings(conf.LogConfig{
		Enabled:  true,
		Path:     logPath,
		Rotation: conf.RotationSize,
		MaxSize:  10 * 1024 * 1024,
	}))

	logger, closeLog, err := NewFileLogger(logPath, "serve", slog.LevelInfo)
	require.NoError(t, err)

	logger.Info("hello")
	require.NoError(t, closeLog())

	_, err = os.Stat(logPath)
	assert.NoError(t, err)
}

func TestNewFileLoggerRespectsLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ransomwatch.log")
	conf.SetTestSettings(testLogSettings(conf.LogConfig{
		Enabled:  true,
		Path:     logPath,
		Rotation: conf.RotationWeekly,
	}))

	logger, closeLog, err := NewFileLogger(logPath, "serve", slog.LevelWarn)
	require.NoError(t, err)

	logger.Info("filtered out")
	logger.Warn("kept")
	require.NoError(t, closeLog())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "filtered out")
	assert.Contains(t, string(data), "kept")
}
