// Package session orchestrates capture, voice activity detection, streaming
// transport, and reply playback across conversational turns.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sgrover/confab/internal/config"
	"github.com/sgrover/confab/internal/fsm"
	"github.com/sgrover/confab/internal/ipc"
	"github.com/sgrover/confab/internal/pipeline"
	"github.com/sgrover/confab/internal/transcript"
	"github.com/sgrover/confab/internal/transport"
	"github.com/sgrover/confab/internal/vad"
	"github.com/sgrover/confab/internal/voice"
)

// Mode selects the orchestration strategy for a session.
type Mode int

const (
	// ModeStreaming holds a persistent transport and stops capture on
	// detected silence.
	ModeStreaming Mode = iota
	// ModeFallback records one bounded utterance and posts it as a single
	// request.
	ModeFallback
)

type action struct {
	kind   actionKind
	source string
}

type actionKind int

const (
	actionStop actionKind = iota + 1
	actionInterrupt
	actionCancel
)

// Capture is the live microphone handle as seen by the session.
type Capture interface {
	Chunks() <-chan voice.AudioChunk
	Stop() error
	Duration() time.Duration
	BytesCaptured() int64
	RawPCM() []byte
}

// AcquireFunc opens the microphone and returns the handle plus a device
// description for logging.
type AcquireFunc func(ctx context.Context) (Capture, string, error)

// Transport is the streaming channel as seen by the session.
type Transport interface {
	Events() <-chan transport.Event
	StartStreaming(language string) error
	StopStreaming() error
	SendAudio(data []byte) error
	Ping() error
	LastPong() time.Time
	Close() error
	Err() error
}

// DialFunc opens the streaming transport.
type DialFunc func(ctx context.Context) (Transport, error)

// Queue is the ordered reply-playback queue as seen by the session.
type Queue interface {
	Enqueue(voice.PlaybackItem)
	Interrupt()
	OnDrained(fn func())
	Pending() int
}

// Exchanger posts one full utterance in fallback mode.
type Exchanger interface {
	Exchange(ctx context.Context, audioWAV []byte, language string) (*pipeline.Response, error)
}

// Indicator is the session-facing subset of indicator behavior.
type Indicator interface {
	ShowListening(context.Context)
	ShowProcessing(context.Context)
	ShowSpeaking(context.Context)
	ShowNotice(context.Context, string)
	ShowError(context.Context, string)
	CueStop(context.Context)
	CueInterrupt(context.Context)
	Hide(context.Context)
}

type noopIndicator struct{}

func (noopIndicator) ShowListening(context.Context)      {}
func (noopIndicator) ShowProcessing(context.Context)     {}
func (noopIndicator) ShowSpeaking(context.Context)       {}
func (noopIndicator) ShowNotice(context.Context, string) {}
func (noopIndicator) ShowError(context.Context, string)  {}
func (noopIndicator) CueStop(context.Context)            {}
func (noopIndicator) CueInterrupt(context.Context)       {}
func (noopIndicator) Hide(context.Context)               {}

// Options wire the controller's collaborators. Nil collaborators degrade to
// safe no-ops so tests can wire only what they exercise.
type Options struct {
	Logger      *slog.Logger
	Config      config.Config
	Mode        Mode
	Acquire     AcquireFunc
	Dial        DialFunc
	Exchange    Exchanger
	Synthesizer pipeline.Synthesizer
	Queue       Queue
	Indicator   Indicator

	// OnTurn observes committed transcript/response text for display.
	OnTurn func(role voice.Role, text string)
	// OnPartial observes in-progress transcript hypotheses.
	OnPartial func(text string)
	// OnError is the single upward error report; errors are never thrown
	// across asynchronous boundaries.
	OnError func(err error)
}

// Result is the complete lifecycle output returned by one Run invocation.
type Result struct {
	State         fsm.State
	ClientID      string
	Turns         []voice.Turn
	Cancelled     bool
	Err           error
	AudioDevice   string
	BytesCaptured int64
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Controller owns the single conversational session. All state transitions
// are serialized behind one mutex; asynchronous completions check the
// generation counter before applying their result, so redundant teardown
// triggers collapse into one idempotent cleanup.
type Controller struct {
	logger      *slog.Logger
	cfg         config.Config
	mode        Mode
	acquire     AcquireFunc
	dial        DialFunc
	exchange    Exchanger
	synthesizer pipeline.Synthesizer
	queue       Queue
	indicator   Indicator
	onTurn      func(voice.Role, string)
	onPartial   func(string)
	onError     func(error)

	detector       *vad.Detector
	history        *voice.Context
	turnTranscript *transcript.Builder

	mu       sync.Mutex
	state    fsm.State
	gen      uint64
	clientID string
	capture  Capture
	trans    Transport
	device   string
	bytes    int64

	actions chan action
	drained chan struct{}
}

// NewController builds a session controller in the idle resting state.
func NewController(opts Options) *Controller {
	cfg := opts.Config
	if opts.Indicator == nil {
		opts.Indicator = noopIndicator{}
	}

	c := &Controller{
		logger:      opts.Logger,
		cfg:         cfg,
		mode:        opts.Mode,
		acquire:     opts.Acquire,
		dial:        opts.Dial,
		exchange:    opts.Exchange,
		synthesizer: opts.Synthesizer,
		queue:       opts.Queue,
		indicator:   opts.Indicator,
		onTurn:      opts.OnTurn,
		onPartial:   opts.OnPartial,
		onError:     opts.OnError,
		state:       fsm.StateIdle,
		actions:     make(chan action, 4),
		drained:     make(chan struct{}, 1),
		history:     voice.NewContext(cfg.Session.ContextTurns),
		detector: vad.New(vad.Config{
			Threshold:    cfg.VAD.Threshold,
			MinSilence:   time.Duration(cfg.VAD.MinSilenceMS) * time.Millisecond,
			ConfirmDelay: time.Duration(cfg.VAD.ConfirmDelayMS) * time.Millisecond,
		}),
	}

	c.detector.OnSilenceExceeded(func() {
		c.requestAction(actionStop, "silence")
	})
	if c.queue != nil {
		c.queue.OnDrained(func() {
			select {
			case c.drained <- struct{}{}:
			default:
			}
		})
	}
	return c
}

// State returns the current state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ClientID returns the backend-assigned id, empty before connect.
func (c *Controller) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// History returns a snapshot of the retained conversation turns.
func (c *Controller) History() []voice.Turn {
	return c.history.Turns()
}

// generation returns the current teardown generation.
func (c *Controller) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// stale reports whether a teardown happened since gen was observed. Results
// of cancelled waits must not be applied.
func (c *Controller) stale(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen != gen
}

// transition applies one state machine event under the mutex.
func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// Teardown is the universal forced exit: it interrupts playback, stops and
// releases capture, disarms the detector, and closes the transport, landing
// on idle. Every external trigger (signal, IPC cancel, process exit) funnels
// here; invoking it repeatedly is safe and equivalent to invoking it once.
func (c *Controller) Teardown(reason string) {
	c.mu.Lock()
	c.gen++
	capture := c.capture
	c.capture = nil
	if capture != nil {
		c.bytes += capture.BytesCaptured()
	}
	trans := c.trans
	c.trans = nil
	next, _ := fsm.Transition(c.state, fsm.EventTeardown)
	c.state = next
	c.mu.Unlock()

	c.detector.Stop()
	if c.queue != nil {
		c.queue.Interrupt()
	}
	if capture != nil {
		_ = capture.Stop()
	}
	if trans != nil {
		_ = trans.Close()
	}

	c.logDebug("session teardown", "reason", reason)
}

// Run executes the session until cancellation. Streaming mode loops
// conversational turns on a persistent transport; fallback mode completes
// one request/response turn.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{StartedAt: time.Now(), State: fsm.StateIdle}

	switch c.mode {
	case ModeFallback:
		c.runFallback(ctx, &result)
	default:
		c.runStreaming(ctx, &result)
	}

	result.State = c.State()
	result.ClientID = c.ClientID()
	result.Turns = c.history.Turns()
	result.FinishedAt = time.Now()

	c.mu.Lock()
	result.AudioDevice = c.device
	result.BytesCaptured = c.bytes
	c.mu.Unlock()

	if result.Err != nil {
		c.reportError(result.Err)
	}
	return result
}

// Handle serves IPC commands for the active session.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	state := c.State()
	switch req.Command {
	case ipc.CommandStatus:
		return ipc.Response{OK: true, State: string(state), Message: "status"}
	case ipc.CommandStop:
		return c.requestStop(state, "stop")
	case ipc.CommandInterrupt:
		return c.requestInterrupt(state)
	case ipc.CommandCancel:
		if c.requestAction(actionCancel, "cancel") {
			return ipc.Response{OK: true, State: string(state), Message: "cancel requested"}
		}
		return ipc.Response{OK: true, State: string(state), Message: "cancel already requested"}
	case ipc.CommandToggle:
		if fsm.CaptureActive(state) {
			return c.requestStop(state, "toggle")
		}
		if state == fsm.StateSpeaking {
			return c.requestInterrupt(state)
		}
		return ipc.Response{OK: true, State: string(state), Message: "session already active"}
	default:
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

// requestStop enqueues a manual capture stop when state permits it. If a
// silence-stop already won the race the request degrades to a no-op.
func (c *Controller) requestStop(state fsm.State, source string) ipc.Response {
	if !fsm.CaptureActive(state) {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot %s from state %s", source, state)}
	}
	if c.requestAction(actionStop, source) {
		return ipc.Response{OK: true, State: string(state), Message: "stop requested"}
	}
	return ipc.Response{OK: true, State: string(state), Message: "stop already requested"}
}

// requestInterrupt enqueues a playback interrupt when the assistant is
// speaking.
func (c *Controller) requestInterrupt(state fsm.State) ipc.Response {
	if state != fsm.StateSpeaking {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot interrupt from state %s", state)}
	}
	if c.requestAction(actionInterrupt, "interrupt") {
		return ipc.Response{OK: true, State: string(state), Message: "interrupt requested"}
	}
	return ipc.Response{OK: true, State: string(state), Message: "interrupt already requested"}
}

// requestAction enqueues an action without blocking; a full queue means an
// equivalent request is already pending.
func (c *Controller) requestAction(kind actionKind, source string) bool {
	select {
	case c.actions <- action{kind: kind, source: source}:
		return true
	default:
		return false
	}
}

// storeCapture records the live handle unless a teardown invalidated gen, in
// which case the handle is released immediately and not applied.
func (c *Controller) storeCapture(gen uint64, capture Capture, device string) bool {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		_ = capture.Stop()
		return false
	}
	c.capture = capture
	c.device = device
	c.mu.Unlock()
	return true
}

// releaseCapture stops and forgets the active handle. Safe when no handle is
// held.
func (c *Controller) releaseCapture() {
	c.mu.Lock()
	capture := c.capture
	c.capture = nil
	if capture != nil {
		c.bytes += capture.BytesCaptured()
	}
	c.mu.Unlock()
	if capture != nil {
		_ = capture.Stop()
	}
}

// storeTransport records the open channel unless gen is stale.
func (c *Controller) storeTransport(gen uint64, trans Transport) bool {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		_ = trans.Close()
		return false
	}
	c.trans = trans
	c.mu.Unlock()
	return true
}

func (c *Controller) setClientID(id string) {
	c.mu.Lock()
	c.clientID = id
	c.mu.Unlock()
}

func (c *Controller) minDuration() time.Duration {
	return time.Duration(c.cfg.Capture.MinDurationMS) * time.Millisecond
}

func (c *Controller) maxDuration() time.Duration {
	return time.Duration(c.cfg.Capture.MaxDurationMS) * time.Millisecond
}

func (c *Controller) pongTimeout() time.Duration {
	return time.Duration(c.cfg.Backend.PongTimeoutMS) * time.Millisecond
}

func (c *Controller) emitTurn(role voice.Role, text string) {
	if text == "" {
		return
	}
	c.history.Append(role, text)
	if c.onTurn != nil {
		c.onTurn(role, text)
	}
}

func (c *Controller) emitPartial(text string) {
	if c.onPartial != nil {
		c.onPartial(text)
	}
}

func (c *Controller) reportError(err error) {
	if c.onError != nil && err != nil {
		c.onError(err)
	}
}

func (c *Controller) logDebug(message string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(message, args...)
	}
}

func (c *Controller) logWarn(message string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(message, args...)
	}
}

func (c *Controller) logInfo(message string, args ...any) {
	if c.logger != nil {
		c.logger.Info(message, args...)
	}
}
