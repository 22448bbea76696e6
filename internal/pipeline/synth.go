package pipeline

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Synthesizer voices a text reply when the backend returns no audio
// payload.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// SynthesizerFunc adapts a function to the Synthesizer interface.
type SynthesizerFunc func(context.Context, string) error

func (f SynthesizerFunc) Speak(ctx context.Context, text string) error {
	return f(ctx, text)
}

const speakTimeout = 30 * time.Second

// ExecSynthesizer shells out to a system text-to-speech command (espeak-ng
// by default) that renders straight to the default output device.
type ExecSynthesizer struct {
	command string
}

// NewExecSynthesizer builds a synthesizer around the configured command.
func NewExecSynthesizer(command string) *ExecSynthesizer {
	return &ExecSynthesizer{command: strings.TrimSpace(command)}
}

// Speak blocks until the command finishes or ctx is cancelled.
func (s *ExecSynthesizer) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" || s.command == "" {
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, speakTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.command, text)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("local speech synthesis via %q: %w", s.command, err)
	}
	return nil
}
