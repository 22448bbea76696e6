// Package config resolves, parses, validates, and defaults the confab
// runtime configuration.
package config

// Config is the fully materialized runtime configuration.
type Config struct {
	Backend   BackendConfig   `toml:"backend"`
	Audio     AudioConfig     `toml:"audio"`
	VAD       VADConfig       `toml:"vad"`
	Capture   CaptureConfig   `toml:"capture"`
	Session   SessionConfig   `toml:"session"`
	Speech    SpeechConfig    `toml:"speech"`
	Indicator IndicatorConfig `toml:"indicator"`
	Debug     DebugConfig     `toml:"debug"`
}

// BackendConfig locates the assistant backend for both modes.
type BackendConfig struct {
	StreamEndpoint string `toml:"stream_endpoint"`
	HTTPEndpoint   string `toml:"http_endpoint"`
	HealthPath     string `toml:"health_path"`
	AuthToken      string `toml:"auth_token"`
	PongTimeoutMS  int    `toml:"pong_timeout_ms"`
}

// AudioConfig controls input selection and capture constraints. Constraint
// hints are passed through to the sound server unmodified.
type AudioConfig struct {
	Input            string `toml:"input"`
	SampleRate       int    `toml:"sample_rate"`
	Channels         int    `toml:"channels"`
	ChunkIntervalMS  int    `toml:"chunk_interval_ms"`
	EchoCancellation bool   `toml:"echo_cancellation"`
	NoiseSuppression bool   `toml:"noise_suppression"`
	AutoGain         bool   `toml:"auto_gain"`
}

// VADConfig tunes silence-based capture stop.
type VADConfig struct {
	Threshold      float64 `toml:"threshold"`
	MinSilenceMS   int     `toml:"min_silence_ms"`
	ConfirmDelayMS int     `toml:"confirm_delay_ms"`
}

// CaptureConfig bounds utterance length in both modes.
type CaptureConfig struct {
	MinDurationMS int `toml:"min_duration_ms"`
	MaxDurationMS int `toml:"max_duration_ms"`
}

// SessionConfig controls conversation-level behavior.
type SessionConfig struct {
	Language     string `toml:"language"`
	ContextTurns int    `toml:"context_turns"`
}

// SpeechConfig controls local speech synthesis used when the backend
// returns a text-only reply.
type SpeechConfig struct {
	LocalCommand string `toml:"local_command"`
}

// IndicatorConfig controls notifications and audio cue feedback.
type IndicatorConfig struct {
	Enable         bool   `toml:"enable"`
	DesktopAppName string `toml:"desktop_app_name"`
	SoundEnable    bool   `toml:"sound_enable"`
	ErrorTimeoutMS int    `toml:"error_timeout_ms"`
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	// AudioDumpDir, when set, receives one WAV file per captured utterance.
	AudioDumpDir string `toml:"audio_dump_dir"`
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Message string
}
