// Package vad implements amplitude-based voice activity detection with a
// two-stage silence debounce.
package vad

import (
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// Config tunes the silence-stop decision. Amplitude samples are normalized
// RMS values in [0,1].
type Config struct {
	Threshold    float64
	MinSilence   time.Duration
	ConfirmDelay time.Duration
}

// DefaultConfig matches conversational speech at 16kHz mono s16le capture.
func DefaultConfig() Config {
	return Config{
		Threshold:    0.02,
		MinSilence:   time.Second,
		ConfirmDelay: 500 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Threshold <= 0 {
		c.Threshold = d.Threshold
	}
	if c.MinSilence <= 0 {
		c.MinSilence = d.MinSilence
	}
	if c.ConfirmDelay <= 0 {
		c.ConfirmDelay = d.ConfirmDelay
	}
	return c
}

// Detector consumes periodic amplitude samples and fires a one-shot silence
// callback after sustained silence. A sample above threshold resets both
// stages: the silence must first exceed MinSilence, then survive one further
// ConfirmDelay without speech before the callback fires. The split avoids
// false stops on brief pauses.
//
// The detector is sample-driven: it makes decisions only when fed, which
// keeps it deterministic under test. Capture produces chunks at a fixed
// interval even during silence, so the confirm stage is evaluated on
// schedule.
type Detector struct {
	cfg Config
	now func() time.Time

	mu         sync.Mutex
	running    bool
	fired      bool
	lastSpeech time.Time
	armedAt    time.Time
	armed      bool
	onSilence  func()
}

// New builds a detector; zero config fields fall back to defaults.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg.withDefaults(), now: time.Now}
}

// OnSilenceExceeded registers the one-shot silence callback. It is invoked
// synchronously from the Sample call that confirms the silence.
func (d *Detector) OnSilenceExceeded(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onSilence = fn
}

// Start resets detector state and begins accepting samples. The current
// moment counts as speech so a capture that opens on silence still waits the
// full MinSilence before arming.
func (d *Detector) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = true
	d.fired = false
	d.armed = false
	d.lastSpeech = d.now()
}

// Stop disarms the detector; pending silence tracking is discarded.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = false
	d.armed = false
}

// Sample feeds one amplitude observation in [0,1].
func (d *Detector) Sample(amplitude float64) {
	d.mu.Lock()

	if !d.running || d.fired {
		d.mu.Unlock()
		return
	}

	now := d.now()
	if amplitude > d.cfg.Threshold {
		d.lastSpeech = now
		d.armed = false
		d.mu.Unlock()
		return
	}

	if !d.armed {
		if now.Sub(d.lastSpeech) >= d.cfg.MinSilence {
			d.armed = true
			d.armedAt = now
		}
		d.mu.Unlock()
		return
	}

	if now.Sub(d.armedAt) < d.cfg.ConfirmDelay {
		d.mu.Unlock()
		return
	}

	d.fired = true
	d.running = false
	fn := d.onSilence
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Amplitude computes the normalized RMS of s16le PCM, scaled to [0,1].
func Amplitude(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += sample * sample
	}
	return math.Sqrt(sum/float64(n)) / 32768.0
}
