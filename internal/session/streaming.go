package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sgrover/confab/internal/fsm"
	"github.com/sgrover/confab/internal/transcript"
	"github.com/sgrover/confab/internal/transport"
	"github.com/sgrover/confab/internal/vad"
	"github.com/sgrover/confab/internal/voice"
)

const (
	connectTimeout  = 10 * time.Second
	responseTimeout = 45 * time.Second
	pingInterval    = 15 * time.Second
)

type directive int

const (
	turnProcess directive = iota
	turnNext
	turnInterrupted
	turnEnd
	turnCancelled
)

// runStreaming holds one persistent transport and loops conversational
// turns over it until cancellation or a fatal error.
func (c *Controller) runStreaming(ctx context.Context, result *Result) {
	if err := voice.RequireSecureEndpoint(c.cfg.Backend.StreamEndpoint); err != nil {
		result.Err = err
		return
	}
	if c.dial == nil || c.acquire == nil || c.queue == nil {
		result.Err = fmt.Errorf("streaming session missing collaborators")
		return
	}

	gen := c.generation()

	if err := c.transition(fsm.EventConnect); err != nil {
		result.Err = err
		return
	}

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	trans, err := c.dial(dialCtx)
	cancel()
	if err != nil {
		c.Teardown("dial failed")
		result.Err = err
		c.indicator.ShowError(ctx, "backend unreachable")
		return
	}
	if !c.storeTransport(gen, trans) {
		result.Cancelled = true
		return
	}

	clientID, err := c.awaitConnected(ctx, trans)
	if err != nil {
		c.Teardown("handshake failed")
		if errors.Is(err, context.Canceled) {
			result.Cancelled = true
			return
		}
		result.Err = err
		return
	}
	c.setClientID(clientID)
	c.logInfo("session connected", "client_id", clientID, "endpoint", c.cfg.Backend.StreamEndpoint)

	for {
		d, err := c.streamTurn(ctx, gen, trans)
		if err != nil {
			result.Err = err
		}
		switch d {
		case turnNext:
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

// pongExpired reports whether a ping sent at lastPing has gone unanswered
// past the configured timeout.
func pongExpired(lastPing, lastPong, now time.Time, timeout time.Duration) bool {
	if lastPing.IsZero() {
		return false
	}
	return lastPong.Before(lastPing) && now.Sub(lastPing) >= timeout
}

// awaitConnected waits for the backend to assign a session id.
func (c *Controller) awaitConnected(ctx context.Context, trans Transport) (string, error) {
	timer := time.NewTimer(connectTimeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
			return "", fmt.Errorf("%w: no session id within %s", voice.ErrConnection, connectTimeout)
		case event, ok := <-trans.Events():
			if !ok {
				if cause := trans.Err(); cause != nil {
					return "", fmt.Errorf("%w: transport closed during handshake: %v", voice.ErrConnection, cause)
				}
				return "", fmt.Errorf("%w: transport closed during handshake", voice.ErrConnection)
			}
			if connected, ok := event.(transport.ConnectedEvent); ok {
				return connected.ClientID, nil
			}
		}
	}
}

// streamTurn runs one capture/response cycle. An interrupt during playback
// re-enters the capture phase without surfacing a completed turn.
func (c *Controller) streamTurn(ctx context.Context, gen uint64, trans Transport) (directive, error) {
	for {
		d, err := c.streamCapture(ctx, gen, trans)
		if d != turnProcess {
			return d, err
		}
		d, err = c.streamProcess(ctx, gen, trans)
		if d != turnInterrupted {
			return d, err
		}
		if err := c.transition(fsm.EventInterruptStream); err != nil {
			return turnEnd, err
		}
	}
}

// streamCapture acquires the microphone, forwards chunks as binary frames,
// and stops on the first of: detected silence, manual stop, or the capture
// ceiling.
func (c *Controller) streamCapture(ctx context.Context, gen uint64, trans Transport) (directive, error) {
	resumed := c.State() == fsm.StateStreamingCapture
	if !resumed && c.State() == fsm.StateIdle {
		if err := c.transition(fsm.EventConnect); err != nil {
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
	if !resumed {
		if err := c.transition(fsm.EventConnected); err != nil {
			c.releaseCapture()
			return turnEnd, err
		}
	}
	if err := trans.StartStreaming(c.cfg.Session.Language); err != nil {
		c.releaseCapture()
		return turnEnd, fmt.Errorf("%w: start_streaming: %v", voice.ErrConnection, err)
	}

	c.turnTranscript = new(transcript.Builder)
	c.detector.Start()
	c.indicator.ShowListening(ctx)
	c.logDebug("capture started", "device", device)

	// Discard a drained signal left over from a previous turn.
	select {
	case <-c.drained:
	default:
	}

	maxTimer := time.NewTimer(c.maxDuration())
	defer maxTimer.Stop()
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	var lastPing time.Time

	stopSource := ""
	for stopSource == "" {
		select {
		case <-ctx.Done():
			c.Teardown("context cancelled")
			return turnCancelled, nil
		case chunk, ok := <-capture.Chunks():
			if !ok {
				stopSource = "capture closed"
				continue
			}
			if err := trans.SendAudio(chunk.Data); err != nil {
				c.detector.Stop()
				c.releaseCapture()
				c.Teardown("send failed")
				return turnEnd, fmt.Errorf("%w: send audio: %v", voice.ErrConnection, err)
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
				c.logDebug("ignoring interrupt while capturing")
			}
		case <-maxTimer.C:
			stopSource = "max duration"
		case now := <-ping.C:
			if pongExpired(lastPing, trans.LastPong(), now, c.pongTimeout()) {
				c.detector.Stop()
				c.releaseCapture()
				c.Teardown("pong timeout")
				return turnEnd, fmt.Errorf("%w: no pong within %s", voice.ErrConnection, c.pongTimeout())
			}
			if err := trans.Ping(); err == nil {
				lastPing = now
			}
		case event, ok := <-trans.Events():
			if !ok {
				c.detector.Stop()
				if c.stale(gen) {
					return turnCancelled, nil
				}
				c.releaseCapture()
				c.Teardown("transport lost")
				if cause := trans.Err(); cause != nil {
					return turnEnd, fmt.Errorf("%w: transport closed while capturing: %v", voice.ErrConnection, cause)
				}
				return turnEnd, fmt.Errorf("%w: transport closed while capturing", voice.ErrConnection)
			}
			c.applyTranscriptEvent(event)
		}
	}

	c.detector.Stop()
	if c.stale(gen) {
		// A teardown raced the stop; its cleanup already owns the handle.
		return turnCancelled, nil
	}
	duration := capture.Duration()
	c.releaseCapture()
	c.indicator.CueStop(ctx)
	c.dumpAudio(capture.RawPCM())
	c.logDebug("capture stopped", "source", stopSource, "duration_ms", duration.Milliseconds())

	if err := trans.StopStreaming(); err != nil {
		c.Teardown("stop_streaming failed")
		return turnEnd, fmt.Errorf("%w: stop_streaming: %v", voice.ErrConnection, err)
	}
	if err := c.transition(fsm.EventStopCapture); err != nil {
		return turnEnd, err
	}

	if duration < c.minDuration() {
		c.indicator.ShowNotice(ctx, "utterance too short, discarded")
		c.logInfo("utterance discarded", "duration_ms", duration.Milliseconds())
		if err := c.transition(fsm.EventEmpty); err != nil {
			return turnEnd, err
		}
		return turnNext, nil
	}

	c.indicator.ShowProcessing(ctx)
	return turnProcess, nil
}

// streamProcess consumes the backend's response for one turn: transcript
// commits, the text response, and ordered audio segments fed to the playback
// queue. It returns when playback drains, the turn is interrupted, or the
// session ends.
func (c *Controller) streamProcess(ctx context.Context, gen uint64, trans Transport) (directive, error) {
	timeout := time.NewTimer(responseTimeout)
	defer timeout.Stop()

	speaking := false
	for {
		select {
		case <-ctx.Done():
			c.Teardown("context cancelled")
			return turnCancelled, nil
		case <-timeout.C:
			if speaking {
				continue
			}
			c.indicator.ShowNotice(ctx, "no response from backend")
			if err := c.transition(fsm.EventEmpty); err != nil {
				return turnEnd, err
			}
			return turnNext, nil
		case <-c.drained:
			if !speaking {
				continue
			}
			if err := c.transition(fsm.EventDrained); err != nil {
				return turnEnd, err
			}
			c.indicator.Hide(ctx)
			c.logDebug("playback drained")
			return turnNext, nil
		case act := <-c.actions:
			switch act.kind {
			case actionCancel:
				c.Teardown("cancelled")
				return turnCancelled, nil
			case actionInterrupt:
				if !speaking {
					c.logDebug("ignoring interrupt before playback")
					continue
				}
				c.queue.Interrupt()
				c.indicator.CueInterrupt(ctx)
				c.logInfo("playback interrupted")
				return turnInterrupted, nil
			default:
				c.logDebug("ignoring stop outside capture")
			}
		case event, ok := <-trans.Events():
			if !ok {
				if c.stale(gen) {
					return turnCancelled, nil
				}
				c.Teardown("transport lost")
				if cause := trans.Err(); cause != nil {
					return turnEnd, fmt.Errorf("%w: transport closed while awaiting response: %v", voice.ErrConnection, cause)
				}
				return turnEnd, fmt.Errorf("%w: transport closed while awaiting response", voice.ErrConnection)
			}
			switch ev := event.(type) {
			case transport.AudioChunkEvent:
				if !speaking {
					speaking = true
					timeout.Stop()
					if err := c.transition(fsm.EventSpeak); err != nil {
						return turnEnd, err
					}
					c.indicator.ShowSpeaking(ctx)
				}
				c.queue.Enqueue(voice.PlaybackItem{Data: ev.Data, IsLast: ev.IsLast})
			case transport.ErrorEvent:
				c.logWarn("backend error", "message", ev.Message)
				if speaking {
					continue
				}
				c.indicator.ShowError(ctx, ev.Message)
				if err := c.transition(fsm.EventEmpty); err != nil {
					return turnEnd, err
				}
				return turnNext, nil
			default:
				c.applyTranscriptEvent(event)
			}
		}
	}
}

// applyTranscriptEvent folds transcript and response events into the turn's
// assembled text and the retained conversation history.
func (c *Controller) applyTranscriptEvent(event transport.Event) {
	switch ev := event.(type) {
	case transport.PartialTranscriptEvent:
		if c.turnTranscript != nil {
			c.turnTranscript.Partial(ev.Transcript)
			c.emitPartial(c.turnTranscript.String())
		}
	case transport.FinalTranscriptEvent:
		text := ev.Transcript
		if c.turnTranscript != nil {
			c.turnTranscript.Final(ev.Transcript)
			text = c.turnTranscript.String()
		}
		c.emitTurn(voice.RoleUser, text)
	case transport.TextResponseEvent:
		c.emitTurn(voice.RoleAssistant, ev.Text)
	}
}
