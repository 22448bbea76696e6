package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCueSamplesKnownKinds(t *testing.T) {
	for _, kind := range []cueKind{cueStart, cueStop, cueInterrupt, cueError} {
		require.NotEmpty(t, cueSamples(kind))
	}
	require.Nil(t, cueSamples(cueKind(0)))
	require.Nil(t, cueSamples(cueKind(99)))
}

func TestSynthesizeToneBoundsAndEnvelope(t *testing.T) {
	pcm := synthesizeTone(toneSpec{frequencyHz: 784, duration: 70 * time.Millisecond, volume: 0.16})
	require.Equal(t, samplesForDuration(70*time.Millisecond), len(pcm))

	limit := int16(math.Round(0.16*32767)) + 1
	for _, sample := range pcm {
		if sample > limit || sample < -limit {
			t.Fatalf("sample %d exceeds volume bound %d", sample, limit)
		}
	}

	// Ramped attack and release start and end near silence.
	require.LessOrEqual(t, abs16(pcm[0]), int16(64))
	require.LessOrEqual(t, abs16(pcm[len(pcm)-1]), int16(64))
}

func TestSynthesizeToneRejectsDegenerateSpecs(t *testing.T) {
	require.Nil(t, synthesizeTone(toneSpec{frequencyHz: 0, duration: time.Second, volume: 0.2}))
	require.Nil(t, synthesizeTone(toneSpec{frequencyHz: 440, duration: 0, volume: 0.2}))
	require.Nil(t, synthesizeTone(toneSpec{frequencyHz: 440, duration: time.Second, volume: 0}))
}

func TestSynthesizeCueInsertsGapBetweenParts(t *testing.T) {
	single := synthesizeCue([]toneSpec{
		{frequencyHz: 523, duration: 60 * time.Millisecond, volume: 0.16},
	})
	double := synthesizeCue([]toneSpec{
		{frequencyHz: 523, duration: 60 * time.Millisecond, volume: 0.16},
		{frequencyHz: 523, duration: 60 * time.Millisecond, volume: 0.16},
	})

	gap := samplesForDuration(20 * time.Millisecond)
	require.Equal(t, 2*len(single)+gap, len(double))
}

func abs16(v int16) int16 {
	if v < 0 {
		return -v
	}
	return v
}
