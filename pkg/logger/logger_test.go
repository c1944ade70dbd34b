package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_AttachesFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "api").
		WithRequestID("req-1").
		WithMerchantID("m-1").
		WithComponent("queue")

	log.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "api", entry["service"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "m-1", entry["merchant_id"])
	assert.Equal(t, "queue", entry["component"])
	assert.Equal(t, "hello", entry["message"])
}

func TestNewWithOptions_LevelFiltersDebug(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "api.log")

	log := NewWithOptions("api", Options{Level: "warn", File: file, MaxSizeMB: 1})
	log.Info().Msg("dropped")
	log.Warn().Msg("kept")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestNewWithOptions_InvalidLevelFallsBackToInfo(t *testing.T) {
	log := NewWithOptions("api", Options{Level: "loud"})
	assert.Equal(t, "info", log.GetLevel().String())
}
