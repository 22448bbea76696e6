// Package voice holds the shared data model and error taxonomy for
// conversation turns.
package voice

import "errors"

var (
	// ErrPermissionDenied indicates microphone access was refused. Terminal
	// for the turn; the session returns to idle with a user notice.
	ErrPermissionDenied = errors.New("microphone access denied")
	// ErrDeviceUnavailable indicates no usable capture or playback device.
	ErrDeviceUnavailable = errors.New("no usable audio device")
	// ErrConnection indicates the streaming transport failed to open.
	ErrConnection = errors.New("backend connection failed")
	// ErrProtocol indicates a malformed or unexpected server message.
	ErrProtocol = errors.New("unexpected server message")
	// ErrEmptyResult indicates no speech was detected or the backend returned
	// an empty result. Routine idle transition, not a failure.
	ErrEmptyResult = errors.New("no speech detected")
	// ErrPlayback indicates one synthesized segment failed to play. Recovered
	// locally by skipping to the next segment.
	ErrPlayback = errors.New("playback failed")
	// ErrSecureContext indicates the configured backend endpoint is neither
	// loopback nor TLS, so capture must not start.
	ErrSecureContext = errors.New("capture requires a loopback or TLS backend endpoint")
	// ErrTooShort indicates the capture ended before the minimum utterance
	// duration and was discarded without reaching the backend.
	ErrTooShort = errors.New("capture shorter than minimum utterance duration")
)
