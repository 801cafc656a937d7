package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesJSONWithServiceFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "parking-test", "prod", "info")
	t.Cleanup(func() { logger = nil })

	Info(context.Background(), "hold expired", "booking_id", "b-1", "slot_id", 7)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hold expired", entry["msg"])
	assert.Equal(t, "parking-test", entry["service"])
	assert.Equal(t, "prod", entry["environment"])
	assert.Equal(t, "b-1", entry["booking_id"])
	assert.EqualValues(t, 7, entry["slot_id"])
	assert.NotContains(t, entry, "traceId")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "parking-test", "prod", "warn")
	t.Cleanup(func() { logger = nil })

	Info(context.Background(), "dropped")
	assert.Zero(t, buf.Len())

	Warn(context.Background(), "kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
