package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		" Debug ": zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"off":     zerolog.Disabled,
		"ERROR":   zerolog.ErrorLevel,
	}
	for raw, want := range cases {
		got, ok := ParseLevel(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := ParseLevel("loud")
	assert.False(t, ok)
	_, ok = ParseLevel("")
	assert.False(t, ok)
}

func TestNewWritesJSONWithoutTouchingGlobals(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: zerolog.InfoLevel, JSON: true, Out: &buf})
	logger.Debug().Msg("hidden")
	logger.Info().Str("path", "/Audio").Msg("engine loaded")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "engine loaded", entry["message"])
	assert.Equal(t, "/Audio", entry["path"])
	assert.Equal(t, "paramctl", entry["app"])
	assert.NotContains(t, entry, "time")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvLogJSON, "true")
	t.Setenv(EnvLogTimestamp, "false")

	cfg := DefaultConfig(ProfileRuntime)
	applyEnvOverrides(&cfg)
	assert.Equal(t, zerolog.WarnLevel, cfg.Level)
	assert.True(t, cfg.JSON)
	assert.False(t, cfg.Timestamp)

	t.Setenv(EnvLogLevel, "nonsense")
	cfg = DefaultConfig(ProfileTest)
	applyEnvOverrides(&cfg)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level)
	assert.True(t, cfg.NoColor)
}
