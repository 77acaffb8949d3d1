// Package config resolves, parses, validates, and defaults narrate preferences.
package config

// Config is the fully materialized runtime configuration used by narrate.
type Config struct {
	ProjectDirectory string
	Font             FontConfig
	Audio            AudioConfig
	Text             TextConfig
	Session          SessionConfig
	Transport        TransportConfig
	Log              LogConfig
}

// FontConfig is carried for display front ends; the core never reads it.
type FontConfig struct {
	Family string
	Size   int
}

// AudioConfig selects devices and the recording format.
type AudioConfig struct {
	Input      string
	Output     string
	SampleRate int
	Channels   int
}

// TextConfig controls sentence boundary detection.
type TextConfig struct {
	Abbreviations bool
}

// SessionConfig selects the session store backend and its location.
type SessionConfig struct {
	Backend string
	Path    string
}

// TransportConfig controls the elapsed/position counter tick.
type TransportConfig struct {
	TickMS int
}

type LogConfig struct {
	Level      string
	MaxSizeMB  int
	MaxBackups int
}

// DeviceConfig is the device and format snapshot injected into the audio
// transport and persisted with each session.
type DeviceConfig struct {
	InputDevice      string `json:"input_device"`
	OutputDevice     string `json:"output_device"`
	SampleRate       int    `json:"sample_rate" validate:"oneof=16000 32000 44100 48000 88200 96000"`
	Channels         int    `json:"channels" validate:"oneof=1 2"`
	ProjectDirectory string `json:"project_directory" validate:"required"`
}

// Device returns the transport device snapshot described by cfg.
func (cfg Config) Device() DeviceConfig {
	return DeviceConfig{
		InputDevice:      cfg.Audio.Input,
		OutputDevice:     cfg.Audio.Output,
		SampleRate:       cfg.Audio.SampleRate,
		Channels:         cfg.Audio.Channels,
		ProjectDirectory: cfg.ProjectDirectory,
	}
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

const (
	SessionBackendJSON   = "json"
	SessionBackendSQLite = "sqlite"
)

// SupportedSampleRates lists the recording rates accepted in DeviceConfig.
var SupportedSampleRates = []int{16000, 32000, 44100, 48000, 88200, 96000}
