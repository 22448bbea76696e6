// Package indicator surfaces session state to the user through desktop
// notifications and short audio cues.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sgrover/confab/internal/config"
)

// Controller is the session-facing indicator contract.
type Controller interface {
	ShowListening(context.Context)
	ShowProcessing(context.Context)
	ShowSpeaking(context.Context)
	ShowNotice(context.Context, string)
	ShowError(context.Context, string)
	CueStart(context.Context)
	CueStop(context.Context)
	CueInterrupt(context.Context)
	CueError(context.Context)
	Hide(context.Context)
}

// Desktop routes state text through freedesktop notifications and plays
// synthesized cues through PulseAudio.
type Desktop struct {
	cfg    config.IndicatorConfig
	logger *slog.Logger

	mu             sync.Mutex
	notificationID uint32
	soundMu        sync.Mutex
}

// NewDesktop creates the indicator controller from config.
func NewDesktop(cfg config.IndicatorConfig, logger *slog.Logger) *Desktop {
	return &Desktop{cfg: cfg, logger: logger}
}

// ShowListening signals active capture and plays the start cue.
func (d *Desktop) ShowListening(ctx context.Context) {
	d.playCue(cueStart)
	d.show(ctx, "Listening…", 300000)
}

// ShowProcessing signals the post-capture wait for the backend.
func (d *Desktop) ShowProcessing(ctx context.Context) {
	d.show(ctx, "Thinking…", 300000)
}

// ShowSpeaking signals active reply playback.
func (d *Desktop) ShowSpeaking(ctx context.Context) {
	d.show(ctx, "Speaking…", 300000)
}

// ShowNotice displays a routine, non-error message.
func (d *Desktop) ShowNotice(ctx context.Context, text string) {
	d.show(ctx, text, d.errorTimeout())
}

// ShowError displays a terminal-error message and plays the error cue.
func (d *Desktop) ShowError(ctx context.Context, text string) {
	d.playCue(cueError)
	if text == "" {
		text = "Voice session failed"
	}
	d.show(ctx, text, d.errorTimeout())
}

// CueStart plays the capture-start tone.
func (d *Desktop) CueStart(context.Context) { d.playCue(cueStart) }

// CueStop plays the capture-stop tone.
func (d *Desktop) CueStop(context.Context) { d.playCue(cueStop) }

// CueInterrupt plays the playback-interrupted tone.
func (d *Desktop) CueInterrupt(context.Context) { d.playCue(cueInterrupt) }

// CueError plays the failure tone.
func (d *Desktop) CueError(context.Context) { d.playCue(cueError) }

// Hide dismisses the active notification.
func (d *Desktop) Hide(ctx context.Context) {
	if !d.cfg.Enable {
		return
	}
	d.mu.Lock()
	id := d.notificationID
	d.notificationID = 0
	d.mu.Unlock()
	if id == 0 {
		return
	}
	d.run(ctx, func(ctx context.Context) error {
		return desktopDismiss(ctx, id)
	})
}

func (d *Desktop) show(ctx context.Context, text string, timeoutMS int) {
	if !d.cfg.Enable {
		return
	}

	d.mu.Lock()
	replaceID := d.notificationID
	d.mu.Unlock()

	appName := strings.TrimSpace(d.cfg.DesktopAppName)
	if appName == "" {
		appName = "confab"
	}

	d.run(ctx, func(ctx context.Context) error {
		id, err := desktopNotify(ctx, appName, replaceID, text, timeoutMS)
		if err != nil {
			return err
		}
		d.mu.Lock()
		d.notificationID = id
		d.mu.Unlock()
		return nil
	})
}

func (d *Desktop) errorTimeout() int {
	if d.cfg.ErrorTimeoutMS > 0 {
		return d.cfg.ErrorTimeoutMS
	}
	return 1600
}

// run executes an indicator operation with a bounded timeout.
func (d *Desktop) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		d.log("indicator dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (d *Desktop) playCue(kind cueKind) {
	if !d.cfg.SoundEnable {
		return
	}
	go func() {
		d.soundMu.Lock()
		defer d.soundMu.Unlock()
		if err := emitCue(kind); err != nil {
			d.log("indicator audio cue failed", err)
		}
	}()
}

func (d *Desktop) log(message string, err error) {
	if d.logger == nil || err == nil {
		return
	}
	d.logger.Debug(message, "error", err.Error())
}

// Noop preserves session flow when no indicator is wired.
type Noop struct{}

func (Noop) ShowListening(context.Context)      {}
func (Noop) ShowProcessing(context.Context)     {}
func (Noop) ShowSpeaking(context.Context)       {}
func (Noop) ShowNotice(context.Context, string) {}
func (Noop) ShowError(context.Context, string)  {}
func (Noop) CueStart(context.Context)           {}
func (Noop) CueStop(context.Context)            {}
func (Noop) CueInterrupt(context.Context)       {}
func (Noop) CueError(context.Context)           {}
func (Noop) Hide(context.Context)               {}
