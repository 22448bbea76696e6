package playback

import (
	"encoding/binary"
	"fmt"

	"github.com/sgrover/confab/internal/voice"
)

const (
	fallbackSampleRate = 16000
	fallbackChannels   = 1
)

// decodeSegment turns a synthesized payload into s16 PCM plus its format.
// RIFF/WAVE payloads carry their own rate and channel count; anything else
// is treated as raw s16le at the capture format.
func decodeSegment(data []byte, contentType string) ([]int16, int, int, error) {
	rate := fallbackSampleRate
	channels := fallbackChannels
	pcm := data

	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE" {
		var err error
		pcm, rate, channels, err = stripWAVHeader(data)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("%w: %s (%s)", voice.ErrPlayback, err, contentType)
		}
	}

	if len(pcm)%2 != 0 {
		pcm = pcm[:len(pcm)-1]
	}
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
	}
	return samples, rate, channels, nil
}

// stripWAVHeader walks RIFF chunks for "fmt " and "data". Only 16-bit PCM is
// accepted; compressed formats are a per-item playback error.
func stripWAVHeader(data []byte) ([]byte, int, int, error) {
	rate := 0
	channels := 0
	var pcm []byte

	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if size < 0 || body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, 0, fmt.Errorf("fmt chunk too short (%d bytes)", size)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, 0, 0, fmt.Errorf("unsupported WAV format code %d", format)
			}
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if bits != 16 {
				return nil, 0, 0, fmt.Errorf("unsupported bit depth %d", bits)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			rate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
		case "data":
			pcm = data[body : body+size]
		}

		offset = body + size
		if size%2 == 1 {
			offset++
		}
	}

	if rate <= 0 || channels <= 0 {
		return nil, 0, 0, fmt.Errorf("missing fmt chunk")
	}
	if pcm == nil {
		return nil, 0, 0, fmt.Errorf("missing data chunk")
	}
	return pcm, rate, channels, nil
}
