// Package app wires configuration, logging, IPC, and the session controller
// behind the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/sgrover/confab/internal/audio"
	"github.com/sgrover/confab/internal/cli"
	"github.com/sgrover/confab/internal/config"
	"github.com/sgrover/confab/internal/doctor"
	"github.com/sgrover/confab/internal/indicator"
	"github.com/sgrover/confab/internal/ipc"
	"github.com/sgrover/confab/internal/logging"
	"github.com/sgrover/confab/internal/pipeline"
	"github.com/sgrover/confab/internal/playback"
	"github.com/sgrover/confab/internal/session"
	"github.com/sgrover/confab/internal/transport"
	"github.com/sgrover/confab/internal/version"
	"github.com/sgrover/confab/internal/voice"
)

const forwardTimeout = 220 * time.Millisecond

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("confab"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("confab"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w.Message)
		logger.Warn("config warning", "message", w.Message)
	}
	if parsed.Language != "" {
		cfgLoaded.Config.Session.Language = parsed.Language
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStop:
		return r.forwardOrFail(ctx, ipc.CommandStop)
	case cli.CommandInterrupt:
		return r.forwardOrFail(ctx, ipc.CommandInterrupt)
	case cli.CommandCancel:
		return r.forwardOrFail(ctx, ipc.CommandCancel)
	case cli.CommandToggle:
		return r.forwardOrFail(ctx, ipc.CommandToggle)
	case cli.CommandTalk:
		return r.runSession(ctx, session.ModeStreaming, cfgLoaded.Config, logger)
	case cli.CommandAsk:
		return r.runSession(ctx, session.ModeFallback, cfgLoaded.Config, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandStatus)
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		fmt.Fprintln(r.Stdout, resp.State)
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no active confab session")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// runSession owns the single-instance socket and runs one interactive voice
// session until it completes or is cancelled.
func (r Runner) runSession(ctx context.Context, mode session.Mode, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			// Another session owns the microphone; act as its remote
			// instead of double-acquiring.
			resp, handled, fwdErr := tryForward(ctx, socketPath, ipc.CommandToggle)
			if handled && fwdErr == nil {
				if resp.Message != "" {
					fmt.Fprintln(r.Stdout, resp.Message)
				}
				return 0
			}
			fmt.Fprintln(r.Stderr, "error: a confab session is already running")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	var indicatorCtl session.Indicator = indicator.Noop{}
	if cfg.Indicator.Enable {
		indicatorCtl = indicator.NewDesktop(cfg.Indicator, logger)
	}

	queue := playback.NewQueue(logger, playback.NewPulsePlayer())
	defer queue.Close()

	constraints := audio.Constraints{
		SampleRate:       cfg.Audio.SampleRate,
		Channels:         cfg.Audio.Channels,
		ChunkInterval:    time.Duration(cfg.Audio.ChunkIntervalMS) * time.Millisecond,
		EchoCancellation: cfg.Audio.EchoCancellation,
		NoiseSuppression: cfg.Audio.NoiseSuppression,
		AutoGain:         cfg.Audio.AutoGain,
	}
	acquire := func(ctx context.Context) (session.Capture, string, error) {
		selection, err := audio.SelectDevice(ctx, cfg.Audio.Input)
		if err != nil {
			return nil, "", err
		}
		if selection.Warning != "" {
			logger.Warn("device selection", "warning", selection.Warning)
		}
		capture, err := audio.Acquire(ctx, selection.Device, constraints)
		if err != nil {
			return nil, "", err
		}
		return capture, selection.Device.ID, nil
	}

	opts := session.Options{
		Logger:    logger,
		Config:    cfg,
		Mode:      mode,
		Acquire:   acquire,
		Queue:     queue,
		Indicator: indicatorCtl,
		OnTurn: func(role voice.Role, text string) {
			switch role {
			case voice.RoleUser:
				fmt.Fprintf(r.Stdout, "you: %s\n", text)
			default:
				fmt.Fprintf(r.Stdout, "confab: %s\n", text)
			}
		},
		OnPartial: func(text string) {
			fmt.Fprintf(r.Stderr, "… %s\n", text)
		},
		OnError: func(err error) {
			logger.Error("session error", "error", err.Error())
		},
	}
	switch mode {
	case session.ModeStreaming:
		opts.Dial = func(ctx context.Context) (session.Transport, error) {
			return transport.Dial(ctx, cfg.Backend.StreamEndpoint, transport.Options{
				AuthToken: cfg.Backend.AuthToken,
			})
		}
	case session.ModeFallback:
		opts.Exchange = pipeline.NewClient(cfg.Backend.HTTPEndpoint, cfg.Backend.AuthToken)
		opts.Synthesizer = pipeline.NewExecSynthesizer(cfg.Speech.LocalCommand)
	}

	controller := session.NewController(opts)

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	result := controller.Run(ctx)
	controller.Teardown("process exit")
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	logSessionResult(logger, result)

	if result.Cancelled {
		fmt.Fprintln(r.Stdout, "cancelled")
		return 0
	}
	if result.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %s\n", friendlyError(result.Err))
		return 1
	}
	return 0
}

// friendlyError maps sentinel failures to actionable one-liners.
func friendlyError(err error) string {
	switch {
	case errors.Is(err, voice.ErrPermissionDenied):
		return "microphone access denied; check PulseAudio permissions"
	case errors.Is(err, voice.ErrDeviceUnavailable):
		return "no usable input device; run `confab devices`"
	case errors.Is(err, voice.ErrSecureContext):
		return "refusing unencrypted endpoint on a non-loopback host; use wss:// or https://"
	case errors.Is(err, voice.ErrConnection):
		return fmt.Sprintf("backend connection failed: %v", err)
	case errors.Is(err, voice.ErrTooShort):
		return "utterance too short, nothing sent"
	case errors.Is(err, voice.ErrEmptyResult):
		return "nothing transcribed"
	default:
		return err.Error()
	}
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"state", result.State,
		"cancelled", result.Cancelled,
		"client_id", result.ClientID,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"audio_device", result.AudioDevice,
		"bytes_captured", result.BytesCaptured,
		"turns", len(result.Turns),
	}

	if result.Err != nil {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}

func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, forwardTimeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if ipc.IsSocketMissing(err) || ipc.IsConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}
