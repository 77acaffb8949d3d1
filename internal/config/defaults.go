package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		ProjectDirectory: "~/Music",
		Font:             FontConfig{Family: "Sans", Size: 12},
		Audio: AudioConfig{
			Input:      "default",
			Output:     "default",
			SampleRate: 44100,
			Channels:   1,
		},
		Text:      TextConfig{Abbreviations: false},
		Session:   SessionConfig{Backend: SessionBackendJSON},
		Transport: TransportConfig{TickMS: 1000},
		Log:       LogConfig{Level: "info", MaxSizeMB: 10, MaxBackups: 3},
	}
}
