// Package transport implements the bidirectional streaming channel to the
// backend: JSON control frames plus raw binary audio frames over one
// WebSocket connection.
package transport

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sgrover/confab/internal/voice"
)

// Client -> server control frames.

type startStreamingMessage struct {
	Type     string `json:"type"`
	Language string `json:"language"`
}

type stopStreamingMessage struct {
	Type string `json:"type"`
}

type pingMessage struct {
	Type string `json:"type"`
}

// Event is one typed server message. The set is closed: frames with an
// unknown type decode to an error, not to a silent skip.
type Event interface {
	eventType() string
}

// ConnectedEvent acknowledges the connection and assigns the client id.
type ConnectedEvent struct {
	ClientID string
}

func (ConnectedEvent) eventType() string { return "connection" }

// StreamingStartedEvent acknowledges a start_streaming control frame.
type StreamingStartedEvent struct{}

func (StreamingStartedEvent) eventType() string { return "streaming_started" }

// PartialTranscriptEvent carries an in-progress transcription hypothesis.
type PartialTranscriptEvent struct {
	Transcript string
	Confidence float64
}

func (PartialTranscriptEvent) eventType() string { return "partial_transcript" }

// FinalTranscriptEvent commits the transcription of the captured utterance.
type FinalTranscriptEvent struct {
	Transcript string
	Confidence float64
}

func (FinalTranscriptEvent) eventType() string { return "final_transcript" }

// TextResponseEvent carries the assistant's text reply.
type TextResponseEvent struct {
	Text string
}

func (TextResponseEvent) eventType() string { return "text_response" }

// AudioChunkEvent carries one synthesized-audio segment, already decoded
// from base64. IsLast marks the end of the response audio.
type AudioChunkEvent struct {
	Data   []byte
	IsLast bool
}

func (AudioChunkEvent) eventType() string { return "audio_chunk" }

// ErrorEvent reports a backend-side failure for the current turn.
type ErrorEvent struct {
	Message string
}

func (ErrorEvent) eventType() string { return "error" }

// PongEvent answers a ping control frame.
type PongEvent struct{}

func (PongEvent) eventType() string { return "pong" }

type serverFrame struct {
	Type       string  `json:"type"`
	ClientID   string  `json:"clientId"`
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	Response   string  `json:"response"`
	Data       string  `json:"data"`
	IsLast     bool    `json:"isLast"`
	Message    string  `json:"message"`
}

// decodeServerFrame parses one JSON text frame into its typed event.
func decodeServerFrame(raw []byte) (Event, error) {
	var frame serverFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("decode server frame: %w: %v", voice.ErrProtocol, err)
	}

	switch strings.TrimSpace(frame.Type) {
	case "connection":
		return ConnectedEvent{ClientID: frame.ClientID}, nil
	case "streaming_started":
		return StreamingStartedEvent{}, nil
	case "partial_transcript":
		return PartialTranscriptEvent{Transcript: frame.Transcript, Confidence: frame.Confidence}, nil
	case "final_transcript":
		return FinalTranscriptEvent{Transcript: frame.Transcript, Confidence: frame.Confidence}, nil
	case "text_response":
		return TextResponseEvent{Text: frame.Response}, nil
	case "audio_chunk":
		data, err := base64.StdEncoding.DecodeString(frame.Data)
		if err != nil {
			return nil, fmt.Errorf("decode audio_chunk payload: %w: %v", voice.ErrProtocol, err)
		}
		return AudioChunkEvent{Data: data, IsLast: frame.IsLast}, nil
	case "error":
		return ErrorEvent{Message: frame.Message}, nil
	case "pong":
		return PongEvent{}, nil
	case "":
		return nil, fmt.Errorf("server frame missing type: %w", voice.ErrProtocol)
	default:
		return nil, fmt.Errorf("server frame type %q: %w", frame.Type, voice.ErrProtocol)
	}
}
