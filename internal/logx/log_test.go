package logx

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	buffer := &bytes.Buffer{}
	logger := New(&Options{Level: "warn", Format: FormatJSON, Writer: buffer})
	logger.Info().Msg("hidden")
	logger.Warn().Str("component", "test").Msg("visible")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &entry))
	assert.Equal(t, "visible", entry["message"])
	assert.Equal(t, "test", entry["component"])
	assert.Equal(t, "warn", entry["level"])
}

func TestParseLevel(t *testing.T) {
	t.Setenv("DEBUG", "")
	testCases := []struct {
		description string
		name        string
		expected    zerolog.Level
	}{
		{description: "default", name: "", expected: zerolog.InfoLevel},
		{description: "debug", name: "DEBUG", expected: zerolog.DebugLevel},
		{description: "error", name: "error", expected: zerolog.ErrorLevel},
		{description: "unknown", name: "loud", expected: zerolog.InfoLevel},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expected, ParseLevel(testCase.name), testCase.description)
	}
}
