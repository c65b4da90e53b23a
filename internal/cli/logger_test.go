package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, selectLevel(true, false))
	assert.Equal(t, zerolog.WarnLevel, selectLevel(false, true))
	assert.Equal(t, zerolog.InfoLevel, selectLevel(false, false))
}

func TestInitLoggerWithWriterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLoggerWithWriter(false, true, &buf)

	logger.Info().Msg("routine")
	logger.Warn().Msg("noteworthy")

	assert.NotContains(t, buf.String(), "routine")
	assert.Contains(t, buf.String(), "noteworthy")
}

func TestInitLoggerWithWriterRedactsSensitiveMessages(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLoggerWithWriter(false, false, &buf)

	logger.Info().Msg("agent key sk-ant-REDACTED")

	assert.Contains(t, buf.String(), `"contains_filtered_data":true`)
}

func TestCreateLogFileWriterUsesHomeOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CCTM_HOME", home)

	w, err := createLogFileWriter()
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	_, err = w.Write([]byte("hello\n"))
	require.NoError(t, err)

	logPath := filepath.Join(home, "logs", "cctaskd.log")
	data, err := os.ReadFile(logPath) //nolint:gosec // test-controlled path
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestLogFilePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CCTM_HOME", home)

	path, err := LogFilePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "logs", "cctaskd.log"), path)
}
