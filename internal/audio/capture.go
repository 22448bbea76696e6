package audio

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/sgrover/confab/internal/voice"
)

// Constraints are capture parameters passed through to the sound server.
// The server honors what it supports; unsupported hints are ignored there,
// not here.
type Constraints struct {
	SampleRate       int
	Channels         int
	ChunkInterval    time.Duration
	EchoCancellation bool
	NoiseSuppression bool
	AutoGain         bool
}

// DefaultConstraints is 16kHz mono s16le in 20ms chunks.
func DefaultConstraints() Constraints {
	return Constraints{
		SampleRate:    16000,
		Channels:      1,
		ChunkInterval: 20 * time.Millisecond,
	}
}

func (c Constraints) withDefaults() Constraints {
	d := DefaultConstraints()
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.Channels <= 0 {
		c.Channels = d.Channels
	}
	if c.ChunkInterval <= 0 {
		c.ChunkInterval = d.ChunkInterval
	}
	return c
}

// chunkBytes is the fixed emission size for one chunk interval of s16le PCM.
func (c Constraints) chunkBytes() int {
	n := c.SampleRate * c.Channels * 2 * int(c.ChunkInterval/time.Millisecond) / 1000
	if n <= 0 {
		n = 640
	}
	return n
}

// Capture is the live microphone handle: one pulse client plus one record
// stream. At most one exists per session; Stop is idempotent and reachable
// from every termination path.
type Capture struct {
	device      Device
	constraints Constraints
	startedAt   time.Time

	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan voice.AudioChunk
	stopCh chan struct{}

	mu      sync.Mutex
	pending []byte
	rawPCM  []byte
	stopped bool
	seq     int64

	inflight sync.WaitGroup
	bytes    atomic.Int64
}

// Acquire opens the device and starts a record stream emitting fixed-size
// chunks. Each Acquire produces a fresh chunk sequence; the sequence ends on
// Stop or stream error and is not restartable.
func Acquire(ctx context.Context, selected Device, constraints Constraints) (*Capture, error) {
	constraints = constraints.withDefaults()

	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		if isAccessDenied(err) {
			return nil, fmt.Errorf("resolve source %q: %w", selected.ID, voice.ErrPermissionDenied)
		}
		return nil, fmt.Errorf("resolve source %q: %w: %v", selected.ID, voice.ErrDeviceUnavailable, err)
	}

	capture := &Capture{
		device:      selected,
		constraints: constraints,
		startedAt:   time.Now(),
		client:      client,
		chunks:      make(chan voice.AudioChunk, 128),
		stopCh:      make(chan struct{}),
	}

	opts := []pulse.RecordOption{
		pulse.RecordSource(source),
		pulse.RecordSampleRate(constraints.SampleRate),
		pulse.RecordBufferFragmentSize(uint32(constraints.chunkBytes())),
		pulse.RecordMediaName("confab conversation"),
	}
	if constraints.Channels >= 2 {
		opts = append(opts, pulse.RecordStereo)
	} else {
		opts = append(opts, pulse.RecordMono)
	}
	if constraints.EchoCancellation || constraints.NoiseSuppression || constraints.AutoGain {
		opts = append(opts, pulse.RecordRawOption(func(req *pulseproto.CreateRecordStream) {
			if req.Properties == nil {
				req.Properties = pulseproto.PropList{}
			}
			req.Properties["filter.want"] = pulseproto.PropListString("echo-cancel")
		}))
	}

	writer := pulse.NewWriter(writerFunc(capture.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(writer, opts...)
	if err != nil {
		capture.Close()
		if isAccessDenied(err) {
			return nil, fmt.Errorf("create record stream: %w", voice.ErrPermissionDenied)
		}
		return nil, fmt.Errorf("create record stream: %w: %v", voice.ErrDeviceUnavailable, err)
	}

	capture.stream = stream
	stream.Start()

	go func() {
		<-ctx.Done()
		_ = capture.Stop()
	}()

	return capture, nil
}

// Device returns capture metadata for logging.
func (c *Capture) Device() Device {
	return c.device
}

// Chunks returns the finite chunk sequence. It is closed exactly once by
// Stop.
func (c *Capture) Chunks() <-chan voice.AudioChunk {
	return c.chunks
}

// BytesCaptured reports total PCM bytes accepted from the stream.
func (c *Capture) BytesCaptured() int64 {
	return c.bytes.Load()
}

// Duration reports how long the capture has been (or was) live.
func (c *Capture) Duration() time.Duration {
	return time.Since(c.startedAt)
}

// RawPCM returns a snapshot of all captured PCM bytes.
func (c *Capture) RawPCM() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, len(c.rawPCM))
	copy(out, c.rawPCM)
	return out
}

// Stop finalizes the residual chunk, releases the device, and closes the
// chunk sequence. Safe to call any number of times from any goroutine.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.inflight.Wait()

	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	seq := c.seq
	c.mu.Unlock()

	if len(pending) > 0 {
		chunk := make([]byte, len(pending))
		copy(chunk, pending)
		select {
		case c.chunks <- voice.AudioChunk{Data: chunk, Seq: seq}:
		default:
		}
	}

	close(c.chunks)
	return nil
}

// Close is a convenience alias for Stop.
func (c *Capture) Close() {
	_ = c.Stop()
}

// onPCM receives raw frames from Pulse and re-slices them into fixed-size
// sequenced chunks.
func (c *Capture) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	select {
	case <-c.stopCh:
		return 0, io.EOF
	default:
	}

	size := c.constraints.chunkBytes()

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Add under the same mutex as c.stopped so Stop's Wait cannot race it.
	c.inflight.Add(1)

	c.rawPCM = append(c.rawPCM, buffer...)
	c.pending = append(c.pending, buffer...)

	ready := make([]voice.AudioChunk, 0, len(c.pending)/size)
	for len(c.pending) >= size {
		data := make([]byte, size)
		copy(data, c.pending[:size])
		c.pending = c.pending[size:]
		ready = append(ready, voice.AudioChunk{Data: data, Seq: c.seq})
		c.seq++
	}
	c.mu.Unlock()
	defer c.inflight.Done()

	c.bytes.Add(int64(len(buffer)))

	for _, chunk := range ready {
		select {
		case <-c.stopCh:
			return 0, io.EOF
		case c.chunks <- chunk:
		}
	}

	return len(buffer), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}

func isAccessDenied(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "access denied") || strings.Contains(msg, "permission")
}
