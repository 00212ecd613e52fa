package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Level: "debug", Fields: map[string]string{"cluster": "lab", "empty": ""}})

	logger.Debug().Str("role", "db").Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "lab", line["cluster"])
	assert.Equal(t, "db", line["role"])
	assert.NotContains(t, line, "empty")
	assert.Contains(t, line, "time")
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Level: "warn"})

	logger.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_InvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Level: "chatty"})

	logger.Debug().Msg("dropped")
	logger.Info().Msg("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Pretty: true})

	logger.Info().Msg("pretty line")

	assert.Contains(t, buf.String(), "pretty line")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestLeveledLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLeveledLogger(New(&buf, Options{Level: "debug"}))

	l.Warn("retrying request", "url", "https://example.com", "attempt", 2)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "retrying request", line["message"])
	assert.Equal(t, "https://example.com", line["url"])
	assert.Equal(t, float64(2), line["attempt"])
}
