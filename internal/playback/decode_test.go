package playback

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sgrover/confab/internal/audio"
	"github.com/sgrover/confab/internal/voice"
)

func TestDecodeSegmentWAV(t *testing.T) {
	samplesIn := []int16{-1, 2, 3, -4}
	pcm := make([]byte, 2*len(samplesIn))
	for i, sample := range samplesIn {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(sample))
	}
	wav := audio.EncodeWAV(pcm, 22050, 2)

	samples, rate, channels, err := decodeSegment(wav, "audio/wav")
	require.NoError(t, err)
	require.Equal(t, 22050, rate)
	require.Equal(t, 2, channels)
	require.Equal(t, samplesIn, samples)
}

func TestDecodeSegmentRawFallback(t *testing.T) {
	raw := make([]byte, 4)
	binary.LittleEndian.PutUint16(raw[0:], 7)
	binary.LittleEndian.PutUint16(raw[2:], 8)

	samples, rate, channels, err := decodeSegment(raw, "application/octet-stream")
	require.NoError(t, err)
	require.Equal(t, fallbackSampleRate, rate)
	require.Equal(t, fallbackChannels, channels)
	require.Equal(t, []int16{7, 8}, samples)
}

func TestDecodeSegmentOddLengthTruncates(t *testing.T) {
	samples, _, _, err := decodeSegment([]byte{1, 0, 2}, "")
	require.NoError(t, err)
	require.Equal(t, []int16{1}, samples)
}

func TestDecodeSegmentRejectsCompressedWAV(t *testing.T) {
	wav := audio.EncodeWAV(make([]byte, 4), 16000, 1)
	// Flip the format code from PCM to mu-law.
	binary.LittleEndian.PutUint16(wav[20:], 7)

	_, _, _, err := decodeSegment(wav, "audio/wav")
	require.ErrorIs(t, err, voice.ErrPlayback)
}
