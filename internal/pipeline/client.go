// Package pipeline implements the fallback full-utterance boundary: one
// request carrying a complete recording, one response carrying the full
// transcribe/respond/synthesize result.
package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sgrover/confab/internal/voice"
)

const (
	voicePath      = "/api/voice"
	requestTimeout = 30 * time.Second
)

type request struct {
	RequestID string `json:"request_id"`
	Audio     string `json:"audio"`
	Language  string `json:"language"`
}

// Response is the full pipeline result for one utterance.
type Response struct {
	Success  bool           `json:"success"`
	Pipeline PipelineResult `json:"pipeline"`
}

type PipelineResult struct {
	STT STTResult `json:"stt"`
	RAG RAGResult `json:"rag"`
	TTS TTSResult `json:"tts"`
}

type STTResult struct {
	Transcript string `json:"transcript"`
	Language   string `json:"language"`
}

type RAGResult struct {
	Response string `json:"response"`
	Language string `json:"language"`
}

// TTSResult carries the synthesized reply. An absent AudioBuffer signals the
// client to synthesize speech locally from RAG.Response.
type TTSResult struct {
	Method      string `json:"method"`
	AudioBuffer string `json:"audioBuffer,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// HasAudio reports whether the backend returned playable audio.
func (t TTSResult) HasAudio() bool {
	return strings.TrimSpace(t.AudioBuffer) != ""
}

// DecodeAudio returns the synthesized payload bytes.
func (t TTSResult) DecodeAudio() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(t.AudioBuffer)
	if err != nil {
		return nil, fmt.Errorf("decode tts audio: %w: %v", voice.ErrProtocol, err)
	}
	return data, nil
}

// Client posts complete utterances to the backend voice endpoint.
type Client struct {
	endpoint  string
	authToken string
	http      *http.Client
}

// NewClient builds a fallback-mode client for the HTTP endpoint.
func NewClient(endpoint string, authToken string) *Client {
	return &Client{
		endpoint:  strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		authToken: strings.TrimSpace(authToken),
		http:      &http.Client{Timeout: requestTimeout},
	}
}

// Exchange posts one WAV-wrapped utterance and returns the pipeline result.
func (c *Client) Exchange(ctx context.Context, audioWAV []byte, language string) (*Response, error) {
	payload, err := json.Marshal(request{
		RequestID: uuid.NewString(),
		Audio:     base64.StdEncoding.EncodeToString(audioWAV),
		Language:  language,
	})
	if err != nil {
		return nil, fmt.Errorf("encode voice request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+voicePath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build voice request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post voice request: %w: %v", voice.ErrConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("read voice response: %w: %v", voice.ErrConnection, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("voice endpoint returned HTTP %d: %w", resp.StatusCode, voice.ErrConnection)
	}

	var result Response
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode voice response: %w: %v", voice.ErrProtocol, err)
	}
	return &result, nil
}
