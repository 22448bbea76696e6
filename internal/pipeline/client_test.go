package pipeline

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sgrover/confab/internal/voice"
)

func TestExchangePostsUtteranceAndParsesPipeline(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"pipeline": map[string]any{
				"stt": map[string]any{"transcript": "what time is it", "language": "en-US"},
				"rag": map[string]any{"response": "half past nine", "language": "en-US"},
				"tts": map[string]any{
					"method":      "buffered",
					"audioBuffer": base64.StdEncoding.EncodeToString([]byte{1, 2}),
					"contentType": "audio/wav",
				},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok")
	resp, err := client.Exchange(context.Background(), []byte("RIFFfake"), "en-US")
	require.NoError(t, err)

	require.Equal(t, "/api/voice", gotPath)
	require.Equal(t, "Bearer tok", gotAuth)
	require.Equal(t, "en-US", gotBody["language"])
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("RIFFfake")), gotBody["audio"])

	id, ok := gotBody["request_id"].(string)
	require.True(t, ok)
	_, err = uuid.Parse(id)
	require.NoError(t, err, "request_id must be a UUID")

	require.True(t, resp.Success)
	require.Equal(t, "what time is it", resp.Pipeline.STT.Transcript)
	require.Equal(t, "half past nine", resp.Pipeline.RAG.Response)
	require.True(t, resp.Pipeline.TTS.HasAudio())

	audio, err := resp.Pipeline.TTS.DecodeAudio()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, audio)
}

func TestExchangeHTTPErrorWrapsConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.Exchange(context.Background(), nil, "en-US")
	require.ErrorIs(t, err, voice.ErrConnection)
}

func TestExchangeMalformedBodyWrapsProtocol(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.Exchange(context.Background(), nil, "en-US")
	require.ErrorIs(t, err, voice.ErrProtocol)
}

func TestTTSResultWithoutAudio(t *testing.T) {
	tts := TTSResult{Method: "browser"}
	require.False(t, tts.HasAudio())
}

func TestExecSynthesizerSkipsEmptyInput(t *testing.T) {
	s := NewExecSynthesizer("definitely-not-a-real-binary")
	require.NoError(t, s.Speak(context.Background(), "   "))

	empty := NewExecSynthesizer("")
	require.NoError(t, empty.Speak(context.Background(), "hello"))
}

func TestExecSynthesizerRunsCommand(t *testing.T) {
	s := NewExecSynthesizer("true")
	require.NoError(t, s.Speak(context.Background(), "hello"))

	failing := NewExecSynthesizer("false")
	require.Error(t, failing.Speak(context.Background(), "hello"))
}
