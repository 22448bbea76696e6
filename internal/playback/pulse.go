package playback

import (
	"context"
	"fmt"

	"github.com/jfreymuth/pulse"

	"github.com/sgrover/confab/internal/voice"
)

// PulsePlayer renders segments through a PulseAudio playback stream. Each
// Play opens its own client so a cancelled item tears down cleanly without
// poisoning the next one.
type PulsePlayer struct{}

func NewPulsePlayer() *PulsePlayer {
	return &PulsePlayer{}
}

// Play blocks until the samples drain or ctx is cancelled. Cancellation ends
// the stream at the next reader callback.
func (*PulsePlayer) Play(ctx context.Context, samples []int16, sampleRate int, channels int) error {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("confab"),
		pulse.ClientApplicationIconName("audio-speakers"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w: %v", voice.ErrDeviceUnavailable, err)
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if ctx.Err() != nil || cursor >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	opts := []pulse.PlaybackOption{
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.04),
		pulse.PlaybackMediaName("confab reply"),
	}
	if channels >= 2 {
		opts = append(opts, pulse.PlaybackStereo)
	} else {
		opts = append(opts, pulse.PlaybackMono)
	}

	stream, err := client.NewPlayback(reader, opts...)
	if err != nil {
		return fmt.Errorf("create playback stream: %w: %v", voice.ErrPlayback, err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play segment: %w: %v", voice.ErrPlayback, err)
	}
	return nil
}
