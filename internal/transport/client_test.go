package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/sgrover/confab/internal/voice"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// startServer runs handler on a websocket endpoint and returns the ws:// URL.
func startServer(t *testing.T, handler func(conn *websocket.Conn)) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func recvEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case event, ok := <-c.Events():
		require.True(t, ok, "events channel closed early: %v", c.Err())
		return event
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestClientDeliversEventsInEmissionOrder(t *testing.T) {
	frames := []string{
		`{"type":"connection","clientId":"c-1"}`,
		`{"type":"streaming_started"}`,
		`{"type":"partial_transcript","transcript":"hel","confidence":0.4}`,
		`{"type":"final_transcript","transcript":"hello","confidence":0.9}`,
		`{"type":"text_response","response":"hi"}`,
		`{"type":"audio_chunk","data":"` + base64.StdEncoding.EncodeToString([]byte{9, 9}) + `","isLast":true}`,
	}

	url := startServer(t, func(conn *websocket.Conn) {
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
	})

	client, err := Dial(context.Background(), url, Options{})
	require.NoError(t, err)
	defer client.Close()

	require.Equal(t, ConnectedEvent{ClientID: "c-1"}, recvEvent(t, client))
	require.Equal(t, StreamingStartedEvent{}, recvEvent(t, client))
	require.Equal(t, PartialTranscriptEvent{Transcript: "hel", Confidence: 0.4}, recvEvent(t, client))
	require.Equal(t, FinalTranscriptEvent{Transcript: "hello", Confidence: 0.9}, recvEvent(t, client))
	require.Equal(t, TextResponseEvent{Text: "hi"}, recvEvent(t, client))
	require.Equal(t, AudioChunkEvent{Data: []byte{9, 9}, IsLast: true}, recvEvent(t, client))

	select {
	case _, ok := <-client.Events():
		require.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("events channel did not close after server close")
	}
	require.NoError(t, client.Err())
}

func TestClientSendsControlAndBinaryFrames(t *testing.T) {
	type received struct {
		messageType int
		data        []byte
	}
	got := make(chan received, 3)

	url := startServer(t, func(conn *websocket.Conn) {
		for i := 0; i < 3; i++ {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			got <- received{messageType: messageType, data: data}
		}
	})

	client, err := Dial(context.Background(), url, Options{})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.StartStreaming("en-US"))
	require.NoError(t, client.SendAudio([]byte{1, 2, 3, 4}))
	require.NoError(t, client.StopStreaming())

	first := <-got
	require.Equal(t, websocket.TextMessage, first.messageType)
	var start map[string]any
	require.NoError(t, json.Unmarshal(first.data, &start))
	require.Equal(t, "start_streaming", start["type"])
	require.Equal(t, "en-US", start["language"])

	second := <-got
	require.Equal(t, websocket.BinaryMessage, second.messageType)
	require.Equal(t, []byte{1, 2, 3, 4}, second.data)

	third := <-got
	require.Equal(t, websocket.TextMessage, third.messageType)
	var stop map[string]any
	require.NoError(t, json.Unmarshal(third.data, &stop))
	require.Equal(t, "stop_streaming", stop["type"])
}

func TestClientSendsBearerToken(t *testing.T) {
	headers := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Get("Authorization")
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, err := Dial(context.Background(), url, Options{AuthToken: "sekrit"})
	require.NoError(t, err)
	defer client.Close()

	require.Equal(t, "Bearer sekrit", <-headers)
}

func TestClientBinaryServerFrameIsProtocolError(t *testing.T) {
	url := startServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3})
		time.Sleep(100 * time.Millisecond)
	})

	client, err := Dial(context.Background(), url, Options{})
	require.NoError(t, err)
	defer client.Close()

	select {
	case _, ok := <-client.Events():
		require.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("events channel did not close")
	}
	require.ErrorIs(t, client.Err(), voice.ErrProtocol)
}

func TestClientPongUpdatesLastPong(t *testing.T) {
	url := startServer(t, func(conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`))
		time.Sleep(100 * time.Millisecond)
	})

	client, err := Dial(context.Background(), url, Options{})
	require.NoError(t, err)
	defer client.Close()

	require.True(t, client.LastPong().IsZero())
	require.NoError(t, client.Ping())
	require.Equal(t, PongEvent{}, recvEvent(t, client))
	require.False(t, client.LastPong().IsZero())
}

func TestClientCloseIsIdempotent(t *testing.T) {
	url := startServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	client, err := Dial(context.Background(), url, Options{})
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	require.ErrorIs(t, client.SendAudio([]byte{1}), voice.ErrConnection)
}

func TestDialFailureWrapsConnectionError(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/ws", Options{DialTimeout: time.Second})
	require.ErrorIs(t, err, voice.ErrConnection)
}
