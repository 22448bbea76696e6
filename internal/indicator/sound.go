package indicator

import (
	"fmt"
	"math"
	"time"

	"github.com/jfreymuth/pulse"
)

type cueKind int

const (
	cueStart cueKind = iota + 1
	cueStop
	cueInterrupt
	cueError
)

const cueSampleRate = 16000

type toneSpec struct {
	frequencyHz float64
	duration    time.Duration
	volume      float64
}

var (
	startCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 784, duration: 70 * time.Millisecond, volume: 0.16},
		{frequencyHz: 1047, duration: 80 * time.Millisecond, volume: 0.16},
	})
	stopCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 587, duration: 110 * time.Millisecond, volume: 0.16},
	})
	interruptCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 523, duration: 60 * time.Millisecond, volume: 0.16},
		{frequencyHz: 523, duration: 60 * time.Millisecond, volume: 0.16},
	})
	errorCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 440, duration: 80 * time.Millisecond, volume: 0.16},
		{frequencyHz: 330, duration: 110 * time.Millisecond, volume: 0.16},
	})
)

func emitCue(kind cueKind) error {
	samples := cueSamples(kind)
	if len(samples) == 0 {
		return nil
	}
	return playCue(samples)
}

func playCue(samples []int16) error {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("confab"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if cursor >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueSampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("confab cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play cue stream: %w", err)
	}
	return nil
}

func cueSamples(kind cueKind) []int16 {
	switch kind {
	case cueStart:
		return startCuePCM
	case cueStop:
		return stopCuePCM
	case cueInterrupt:
		return interruptCuePCM
	case cueError:
		return errorCuePCM
	default:
		return nil
	}
}

func synthesizeCue(parts []toneSpec) []int16 {
	if len(parts) == 0 {
		return nil
	}
	gapSamples := samplesForDuration(20 * time.Millisecond)

	var pcm []int16
	for i, part := range parts {
		pcm = append(pcm, synthesizeTone(part)...)
		if i < len(parts)-1 && gapSamples > 0 {
			pcm = append(pcm, make([]int16, gapSamples)...)
		}
	}
	return pcm
}

func synthesizeTone(spec toneSpec) []int16 {
	n := samplesForDuration(spec.duration)
	if n <= 0 || spec.frequencyHz <= 0 || spec.volume <= 0 {
		return nil
	}

	// Short attack/release ramp keeps the tone click-free.
	ramp := n / 10
	if maxRamp := cueSampleRate / 200; ramp > maxRamp {
		ramp = maxRamp
	}
	if ramp < 1 {
		ramp = 1
	}

	pcm := make([]int16, n)
	for i := 0; i < n; i++ {
		envelope := 1.0
		if i < ramp {
			envelope = float64(i) / float64(ramp)
		}
		if tail := n - i - 1; tail < ramp {
			if release := float64(tail) / float64(ramp); release < envelope {
				envelope = release
			}
		}
		t := float64(i) / cueSampleRate
		sample := math.Sin(2 * math.Pi * spec.frequencyHz * t)
		pcm[i] = int16(math.Round(sample * spec.volume * envelope * 32767))
	}
	return pcm
}

func samplesForDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
