package logging

import (
	"bytes"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	buf.Reset()
	return line
}

func TestSetupWriterEmitsStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWriter(&buf, Options{Service: "stakerd", Env: "test"})
	logger.Info("incentive created", slog.String("incentive", "0xabc"), slog.String("token", "eyJhbGciOi"))

	line := decodeLine(t, &buf)
	require.Equal(t, "stakerd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "incentive created", line["message"])
	require.Equal(t, "0xabc", line["incentive"])
	require.Equal(t, RedactedValue, line["token"])
	require.Contains(t, line, "timestamp")
}

func TestSetupWriterHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWriter(&buf, Options{Service: "stakerd", Level: slog.LevelWarn})
	logger.Info("dropped")
	require.Zero(t, buf.Len())

	logger.Warn("kept")
	require.Equal(t, "WARN", decodeLine(t, &buf)["severity"])
}

func TestSetupWriterBridgesStdlib(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, Options{Service: "stakerd"})
	log.Print("legacy line")

	line := decodeLine(t, &buf)
	require.Equal(t, "legacy line", line["message"])
	require.Equal(t, "stakerd", line["service"])
}

func TestRotationWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stakerd.log")
	logger := SetupRotating(Rotation{File: path, MaxSizeMB: 1}, Options{Service: "stakerd"})
	logger.Warn("rotating")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"message":"rotating"`)
	require.NotContains(t, string(data), `"env"`)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("")
	require.NoError(t, err)
	require.Equal(t, slog.LevelInfo, level)

	level, err = ParseLevel(" debug ")
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, level)

	_, err = ParseLevel("verbose")
	require.Error(t, err)
}

func TestRedactSkipsEmptyValues(t *testing.T) {
	require.True(t, IsSensitive(" Authorization "))
	require.False(t, IsSensitive("caller"))
	require.Equal(t, "", redact(slog.String("secret", "")).Value.String())
	require.Equal(t, RedactedValue, redact(slog.Int("secret", 4)).Value.String())
}
