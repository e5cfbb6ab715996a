package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracedLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTracedLogger(NewJSONHandler(&buf, slog.LevelInfo), "ex-1", "operator-7")

	logger.Info(context.Background(), "technique imported", "technique_id", "T1059")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "technique imported", entry["msg"])
	assert.Equal(t, "ex-1", entry["exercise_id"])
	assert.Equal(t, "operator-7", entry["operator"])
	assert.Equal(t, "T1059", entry["technique_id"])
}

func TestTracedLoggerRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTracedLogger(NewJSONHandler(&buf, slog.LevelDebug), "ex-1", "operator-7")
	ctx := context.Background()

	logger.Info(ctx, "credential captured", "ntlm_hash", "aad3b435b51404ee")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "aad3b435b51404ee", entry["ntlm_hash"], "field name does not match the redaction list")

	buf.Reset()
	logger.Info(ctx, "credential captured", "password", "hunter2")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "[REDACTED]", entry["password"])

	// debug level keeps the raw value
	buf.Reset()
	logger.Debug(ctx, "credential captured", "password", "hunter2")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hunter2", entry["password"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("anything"))
}
