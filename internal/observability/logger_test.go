package observability

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/scalpel-graph/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// -- Test Helper Functions --

// syncBuffer is a goroutine-safe in-memory WriteSyncer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) Sync() error { return nil }

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

var _ zapcore.WriteSyncer = (*syncBuffer)(nil)

// -- Test Cases --

func TestInitialize(t *testing.T) {
	t.Run("should initialize console logger with colors", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		out := &syncBuffer{}

		cfg := config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "TestService",
			Colors:      config.ColorConfig{Info: "green"},
		}
		require.NoError(t, Initialize(cfg, out))
		GetLogger().Info("This is a test message.")
		Sync()

		output := out.String()
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "This is a test message.")
		assert.Contains(t, output, colorCodes["green"]+"INFO", "Info level should be colorized green")
		assert.Contains(t, output, colorReset)
		assert.Contains(t, output, "TestService.")
	})

	t.Run("should initialize json logger", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		out := &syncBuffer{}

		cfg := config.LoggerConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "JSONTest",
		}
		require.NoError(t, Initialize(cfg, out))
		GetLogger().Warn("This is a JSON message.", zap.String("key", "value"))
		Sync()

		var logEntry map[string]interface{}
		err := json.Unmarshal([]byte(strings.TrimSpace(out.String())), &logEntry)
		require.NoError(t, err, "Log output should be valid JSON")

		assert.Equal(t, "WARN", logEntry["level"])
		assert.Equal(t, "JSONTest", logEntry["logger"])
		assert.Equal(t, "This is a JSON message.", logEntry["msg"])
		assert.Equal(t, "value", logEntry["key"])
	})

	t.Run("should drop entries below the configured level", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		out := &syncBuffer{}

		require.NoError(t, Initialize(config.LoggerConfig{Level: "warn", Format: "json"}, out))
		GetLogger().Info("hidden")
		GetLogger().Error("shown")
		Sync()

		assert.NotContains(t, out.String(), "hidden")
		assert.Contains(t, out.String(), "shown")
	})

	t.Run("should write to a log file if configured", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		logPath := filepath.Join(t.TempDir(), "graph.log")

		cfg := config.LoggerConfig{
			Level:   "debug",
			Format:  "json",
			LogFile: logPath,
			MaxSize: 1, // 1 MB
		}
		require.NoError(t, Initialize(cfg, &syncBuffer{}))
		GetLogger().Error("This should go to the file.")
		Sync()

		content, err := os.ReadFile(logPath)
		require.NoError(t, err)
		assert.Contains(t, string(content), "This should go to the file.")
	})

	t.Run("should only initialize once", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		out := &syncBuffer{}

		require.NoError(t, Initialize(config.LoggerConfig{Level: "info", ServiceName: "First"}, out))
		logger1 := GetLogger()

		require.NoError(t, Initialize(config.LoggerConfig{Level: "debug", ServiceName: "Second"}, out))
		logger2 := GetLogger()

		assert.Equal(t, logger1, logger2)
		logger2.Info("test")
		Sync()

		assert.Contains(t, out.String(), "First")
		assert.NotContains(t, out.String(), "Second")
	})
}

func TestNewLogger(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     config.LoggerConfig
		wantErr string
	}{
		{"defaults", config.LoggerConfig{}, ""},
		{"unknown level", config.LoggerConfig{Level: "loud"}, "invalid log level"},
		{"unknown format", config.LoggerConfig{Format: "xml"}, `unknown log format "xml"`},
		{"unknown color", config.LoggerConfig{Format: "console", Colors: config.ColorConfig{Warn: "orange"}}, `unknown color "orange"`},
	}
	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg, &syncBuffer{})
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.NotNil(t, logger)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("should leave the global logger untouched on error", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		require.Error(t, Initialize(config.LoggerConfig{Level: "loud"}, &syncBuffer{}))
		assert.Nil(t, globalLogger.Load())

		out := &syncBuffer{}
		require.NoError(t, Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "retry"}, out))
		GetLogger().Info("second attempt")
		assert.Contains(t, out.String(), "second attempt")
	})

	t.Run("should print levels without a color plainly", func(t *testing.T) {
		out := &syncBuffer{}
		logger, err := NewLogger(config.LoggerConfig{Level: "debug", Format: "console", Colors: config.ColorConfig{Info: "green"}}, out)
		require.NoError(t, err)
		logger.Debug("plain")
		assert.Contains(t, out.String(), "\tDEBUG\t")
		assert.NotContains(t, out.String(), colorReset)
	})
}

func TestIsUnsyncableConsole(t *testing.T) {
	assert.True(t, isUnsyncableConsole(&os.PathError{Op: "sync", Path: "/dev/stderr", Err: syscall.EINVAL}))
	assert.True(t, isUnsyncableConsole(syscall.ENOTTY))
	assert.False(t, isUnsyncableConsole(errors.New("disk full")))
}

func TestGetLogger(t *testing.T) {
	t.Run("should return a fallback logger if not initialized", func(t *testing.T) {
		ResetForTest()
		require.NotNil(t, GetLogger())
	})

	t.Run("should return the global logger after initialization", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		require.NoError(t, Initialize(config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"}, &syncBuffer{}))

		assert.Equal(t, globalLogger.Load(), GetLogger())
	})

	t.Run("should scope component loggers by name", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		out := &syncBuffer{}
		require.NoError(t, Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "svc"}, out))

		ComponentLogger("postgres_kg").Info("scoped")
		Sync()

		assert.Contains(t, out.String(), `"logger":"svc.postgres_kg"`)
	})
}
