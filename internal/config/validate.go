package config

import (
	"fmt"
	"strings"
)

// Validate normalizes out-of-range values back to their defaults and
// returns one warning per correction. It never fails: a usable config
// always comes out.
func Validate(cfg *Config) []Warning {
	var warnings []Warning
	def := Default()

	warn := func(format string, args ...any) {
		warnings = append(warnings, Warning{Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(cfg.Backend.StreamEndpoint) == "" {
		cfg.Backend.StreamEndpoint = def.Backend.StreamEndpoint
		warn("backend.stream_endpoint is empty; using %q", def.Backend.StreamEndpoint)
	}
	if strings.TrimSpace(cfg.Backend.HTTPEndpoint) == "" {
		cfg.Backend.HTTPEndpoint = def.Backend.HTTPEndpoint
		warn("backend.http_endpoint is empty; using %q", def.Backend.HTTPEndpoint)
	}
	if cfg.Backend.PongTimeoutMS <= 0 {
		cfg.Backend.PongTimeoutMS = def.Backend.PongTimeoutMS
	}

	if cfg.Audio.SampleRate < 8000 || cfg.Audio.SampleRate > 48000 {
		warn("audio.sample_rate %d out of range [8000,48000]; using %d", cfg.Audio.SampleRate, def.Audio.SampleRate)
		cfg.Audio.SampleRate = def.Audio.SampleRate
	}
	if cfg.Audio.Channels < 1 || cfg.Audio.Channels > 2 {
		warn("audio.channels %d unsupported; using %d", cfg.Audio.Channels, def.Audio.Channels)
		cfg.Audio.Channels = def.Audio.Channels
	}
	if cfg.Audio.ChunkIntervalMS < 10 || cfg.Audio.ChunkIntervalMS > 500 {
		warn("audio.chunk_interval_ms %d out of range [10,500]; using %d", cfg.Audio.ChunkIntervalMS, def.Audio.ChunkIntervalMS)
		cfg.Audio.ChunkIntervalMS = def.Audio.ChunkIntervalMS
	}

	if cfg.VAD.Threshold <= 0 || cfg.VAD.Threshold >= 1 {
		warn("vad.threshold %v out of range (0,1); using %v", cfg.VAD.Threshold, def.VAD.Threshold)
		cfg.VAD.Threshold = def.VAD.Threshold
	}
	if cfg.VAD.MinSilenceMS <= 0 {
		cfg.VAD.MinSilenceMS = def.VAD.MinSilenceMS
	}
	if cfg.VAD.ConfirmDelayMS <= 0 {
		cfg.VAD.ConfirmDelayMS = def.VAD.ConfirmDelayMS
	}

	if cfg.Capture.MinDurationMS <= 0 {
		cfg.Capture.MinDurationMS = def.Capture.MinDurationMS
	}
	if cfg.Capture.MaxDurationMS <= cfg.Capture.MinDurationMS {
		warn("capture.max_duration_ms %d must exceed min_duration_ms %d; using %d",
			cfg.Capture.MaxDurationMS, cfg.Capture.MinDurationMS, def.Capture.MaxDurationMS)
		cfg.Capture.MaxDurationMS = def.Capture.MaxDurationMS
	}

	if strings.TrimSpace(cfg.Session.Language) == "" {
		cfg.Session.Language = def.Session.Language
	}
	if cfg.Session.ContextTurns <= 0 {
		cfg.Session.ContextTurns = def.Session.ContextTurns
	}

	if cfg.Indicator.ErrorTimeoutMS <= 0 {
		cfg.Indicator.ErrorTimeoutMS = def.Indicator.ErrorTimeoutMS
	}

	return warnings
}
