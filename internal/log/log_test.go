package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"trace":   LevelTrace,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestConfigure_JSONIncludesComponentAndTraceLevel(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, LevelTrace, "json")
	t.Cleanup(func() { Configure(&bytes.Buffer{}, slog.LevelInfo, "") })

	LogTraceWithFields("qrlogin", "poll sent", map[string]any{"attempt": 1})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "TRACE", line["level"])
	assert.Equal(t, "qrlogin", line["component"])
	assert.Equal(t, "poll sent", line["msg"])
}

func TestLogTraceWithFields_SuppressedAboveTrace(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, slog.LevelDebug, "text")
	t.Cleanup(func() { Configure(&bytes.Buffer{}, slog.LevelInfo, "") })

	LogTraceWithFields("qrlogin", "hidden", nil)
	LogDebugWithFields("qrlogin", "shown", nil)

	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden"))
	assert.True(t, strings.Contains(out, "shown"))
}
