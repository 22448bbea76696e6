package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sgrover/confab/internal/audio"
	"github.com/sgrover/confab/internal/fsm"
	"github.com/sgrover/confab/internal/vad"
	"github.com/sgrover/confab/internal/voice"
)

// runFallback records one bounded utterance, posts it as a single request,
// and plays the complete reply. An interrupt during playback starts a fresh
// recording; otherwise the session ends after one turn.
func (c *Controller) runFallback(ctx context.Context, result *Result) {
	if err := voice.RequireSecureEndpoint(c.cfg.Backend.HTTPEndpoint); err != nil {
		result.Err = err
		return
	}
	if c.acquire == nil || c.exchange == nil {
		result.Err = fmt.Errorf("fallback session missing collaborators")
		return
	}

	gen := c.generation()

	for {
		d, err := c.fallbackTurn(ctx, gen)
		if err != nil {
			result.Err = err
		}
		switch d {
		case turnInterrupted:
			if terr := c.transition(fsm.EventInterruptRecord); terr != nil {
				result.Err = terr
				c.Teardown("invalid interrupt")
				return
			}
			continue
		case turnCancelled:
			result.Cancelled = true
			return
		default:
			c.Teardown("session ended")
			return
		}
	}
}

// fallbackTurn is one record/exchange/reply cycle.
func (c *Controller) fallbackTurn(ctx context.Context, gen uint64) (directive, error) {
	if c.State() == fsm.StateIdle {
		if err := c.transition(fsm.EventRecord); err != nil {
			return turnEnd, err
		}
	}

	capture, device, err := c.acquire(ctx)
	if err != nil {
		return turnEnd, err
	}
	if !c.storeCapture(gen, capture, device) {
		return turnCancelled, nil
	}

	c.detector.Start()
	c.indicator.ShowListening(ctx)
	c.logDebug("recording started", "device", device)

	maxTimer := time.NewTimer(c.maxDuration())
	defer maxTimer.Stop()

	stopSource := ""
	for stopSource == "" {
		select {
		case <-ctx.Done():
			c.detector.Stop()
			c.Teardown("context cancelled")
			return turnCancelled, nil
		case chunk, ok := <-capture.Chunks():
			if !ok {
				stopSource = "capture closed"
				continue
			}
			c.detector.Sample(vad.Amplitude(chunk.Data))
		case act := <-c.actions:
			switch act.kind {
			case actionStop:
				stopSource = act.source
			case actionCancel:
				c.detector.Stop()
				c.Teardown("cancelled")
				return turnCancelled, nil
			default:
				c.logDebug("ignoring interrupt while recording")
			}
		case <-maxTimer.C:
			stopSource = "max duration"
		}
	}

	c.detector.Stop()
	if c.stale(gen) {
		return turnCancelled, nil
	}
	duration := capture.Duration()
	c.releaseCapture()
	c.indicator.CueStop(ctx)
	c.dumpAudio(capture.RawPCM())
	c.logDebug("recording stopped", "source", stopSource, "duration_ms", duration.Milliseconds())

	if err := c.transition(fsm.EventStopCapture); err != nil {
		return turnEnd, err
	}
	if duration < c.minDuration() {
		c.indicator.ShowNotice(ctx, "utterance too short, discarded")
		if terr := c.transition(fsm.EventEmpty); terr != nil {
			return turnEnd, terr
		}
		return turnEnd, fmt.Errorf("%w: %s captured", voice.ErrTooShort, duration.Round(time.Millisecond))
	}

	c.indicator.ShowProcessing(ctx)
	wav := audio.EncodeWAV(capture.RawPCM(), c.cfg.Audio.SampleRate, c.cfg.Audio.Channels)
	resp, err := c.exchange.Exchange(ctx, wav, c.cfg.Session.Language)
	if c.stale(gen) {
		return turnCancelled, nil
	}
	if err != nil {
		c.indicator.ShowError(ctx, "request failed")
		if terr := c.transition(fsm.EventEmpty); terr != nil {
			return turnEnd, terr
		}
		return turnEnd, err
	}

	transcribed := strings.TrimSpace(resp.Pipeline.STT.Transcript)
	if !resp.Success || transcribed == "" {
		c.indicator.ShowNotice(ctx, "nothing transcribed")
		if terr := c.transition(fsm.EventEmpty); terr != nil {
			return turnEnd, terr
		}
		return turnEnd, voice.ErrEmptyResult
	}

	c.emitTurn(voice.RoleUser, transcribed)
	reply := strings.TrimSpace(resp.Pipeline.RAG.Response)
	c.emitTurn(voice.RoleAssistant, reply)

	if err := c.transition(fsm.EventSpeak); err != nil {
		return turnEnd, err
	}
	c.indicator.ShowSpeaking(ctx)

	if resp.Pipeline.TTS.HasAudio() {
		data, derr := resp.Pipeline.TTS.DecodeAudio()
		if derr == nil {
			return c.speakBuffered(ctx, data, resp.Pipeline.TTS.ContentType)
		}
		c.logWarn("undecodable audio buffer, falling back to local synthesis", "error", derr)
	}
	return c.speakLocal(ctx, reply)
}

// speakBuffered plays the backend-synthesized reply as a single terminal
// playback item and waits for the queue to drain.
func (c *Controller) speakBuffered(ctx context.Context, data []byte, contentType string) (directive, error) {
	if c.queue == nil || len(data) == 0 {
		if err := c.transition(fsm.EventDrained); err != nil {
			return turnEnd, err
		}
		return turnEnd, nil
	}

	select {
	case <-c.drained:
	default:
	}
	c.queue.Enqueue(voice.PlaybackItem{Data: data, ContentType: contentType, IsLast: true})

	for {
		select {
		case <-ctx.Done():
			c.Teardown("context cancelled")
			return turnCancelled, nil
		case <-c.drained:
			if err := c.transition(fsm.EventDrained); err != nil {
				return turnEnd, err
			}
			c.indicator.Hide(ctx)
			return turnEnd, nil
		case act := <-c.actions:
			switch act.kind {
			case actionCancel:
				c.Teardown("cancelled")
				return turnCancelled, nil
			case actionInterrupt:
				c.queue.Interrupt()
				c.indicator.CueInterrupt(ctx)
				return turnInterrupted, nil
			default:
				c.logDebug("ignoring stop during playback")
			}
		}
	}
}

// speakLocal shells out to the configured synthesizer when the backend sent
// no audio buffer.
func (c *Controller) speakLocal(ctx context.Context, text string) (directive, error) {
	if c.synthesizer == nil || text == "" {
		if err := c.transition(fsm.EventDrained); err != nil {
			return turnEnd, err
		}
		return turnEnd, nil
	}

	speakCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.synthesizer.Speak(speakCtx, text)
	}()

	for {
		select {
		case <-ctx.Done():
			cancel()
			<-done
			c.Teardown("context cancelled")
			return turnCancelled, nil
		case err := <-done:
			if err != nil {
				c.logWarn("local synthesis failed", "error", err)
			}
			if terr := c.transition(fsm.EventDrained); terr != nil {
				return turnEnd, terr
			}
			c.indicator.Hide(ctx)
			return turnEnd, nil
		case act := <-c.actions:
			switch act.kind {
			case actionCancel:
				cancel()
				<-done
				c.Teardown("cancelled")
				return turnCancelled, nil
			case actionInterrupt:
				cancel()
				<-done
				c.indicator.CueInterrupt(ctx)
				return turnInterrupted, nil
			default:
				c.logDebug("ignoring stop during playback")
			}
		}
	}
}
