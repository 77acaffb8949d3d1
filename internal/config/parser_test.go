package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseJSONCFullConfig(t *testing.T) {
	input := `
{
  // where recordings land
  "project_directory": "/srv/narration",
  "font": { "family": "Serif", "size": 14 },
  "audio": {
    "input": "alsa_input.usb-mic",
    "output": "alsa_output.headphones",
    "sample_rate": 48000,
    "channels": 2,
  },
  "text": { "abbreviations": true },
  "session": { "backend": "SQLite", "path": "/var/lib/narrate" },
  "transport": { "tick_ms": 1000 },
  "log": { "level": "DEBUG", "max_size_mb": 5, "max_backups": 1 },
}
`

	cfg, warnings, err := Parse(input, Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, "/srv/narration", cfg.ProjectDirectory)
	require.Equal(t, FontConfig{Family: "Serif", Size: 14}, cfg.Font)
	require.Equal(t, AudioConfig{Input: "alsa_input.usb-mic", Output: "alsa_output.headphones", SampleRate: 48000, Channels: 2}, cfg.Audio)
	require.True(t, cfg.Text.Abbreviations)
	require.Equal(t, SessionConfig{Backend: SessionBackendSQLite, Path: "/var/lib/narrate"}, cfg.Session)
	require.Equal(t, LogConfig{Level: "debug", MaxSizeMB: 5, MaxBackups: 1}, cfg.Log)

	device := cfg.Device()
	require.Equal(t, "alsa_input.usb-mic", device.InputDevice)
	require.Equal(t, 48000, device.SampleRate)
	require.Equal(t, "/srv/narration", device.ProjectDirectory)
}

func TestParsePartialConfigKeepsDefaults(t *testing.T) {
	cfg, _, err := Parse(`{"audio": {"channels": 2}}`, Default())
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Audio.Channels)
	require.Equal(t, Default().Audio.SampleRate, cfg.Audio.SampleRate)
	require.Equal(t, Default().ProjectDirectory, cfg.ProjectDirectory)
}

func TestParseEmptyContentReturnsBase(t *testing.T) {
	cfg, warnings, err := Parse("  \n", Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, Default(), cfg)
}

func TestParseUnknownKeyFails(t *testing.T) {
	_, _, err := Parse(`{"riva": {"grpc": "127.0.0.1:50051"}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown field")
}

func TestParseSyntaxErrorReportsLine(t *testing.T) {
	_, _, err := Parse("{\n\n  \"font\": { \"size\": }\n}", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 3")
}

func TestParseTypeErrorReportsLine(t *testing.T) {
	_, _, err := Parse("{\n  \"audio\": {\n    \"sample_rate\": \"fast\"\n  }\n}", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 3")
}

func TestParseValidationFailure(t *testing.T) {
	_, _, err := Parse(`{"audio": {"sample_rate": 8000}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "sample_rate must be one of")
}

func TestParseTickWarning(t *testing.T) {
	cfg, warnings, err := Parse(`{"transport": {"tick_ms": 250}}`, Default())
	require.NoError(t, err)
	require.Equal(t, 250, cfg.Transport.TickMS)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "tick_ms=250")
}
