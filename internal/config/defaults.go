package config

// Default returns the canonical runtime configuration used when no file is
// present.
func Default() Config {
	return Config{
		Backend: BackendConfig{
			StreamEndpoint: "ws://127.0.0.1:8080/ws",
			HTTPEndpoint:   "http://127.0.0.1:8080",
			HealthPath:     "/api/health",
			PongTimeoutMS:  5000,
		},
		Audio: AudioConfig{
			Input:            "default",
			SampleRate:       16000,
			Channels:         1,
			ChunkIntervalMS:  20,
			EchoCancellation: true,
			NoiseSuppression: true,
		},
		VAD: VADConfig{
			Threshold:      0.02,
			MinSilenceMS:   1000,
			ConfirmDelayMS: 500,
		},
		Capture: CaptureConfig{
			MinDurationMS: 1000,
			MaxDurationMS: 20000,
		},
		Session: SessionConfig{
			Language:     "en-US",
			ContextTurns: 16,
		},
		Speech: SpeechConfig{
			LocalCommand: "espeak-ng",
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			DesktopAppName: "confab",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
		Debug: DebugConfig{},
	}
}
