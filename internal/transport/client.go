package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sgrover/confab/internal/voice"
)

const (
	defaultDialTimeout = 10 * time.Second
	readLimitBytes     = 16 * 1024 * 1024
	closeGracePeriod   = 2 * time.Second
)

// Options configure the dial.
type Options struct {
	DialTimeout time.Duration
	AuthToken   string
}

// Client is one live streaming connection. Server messages are delivered on
// Events in the order the backend emitted them; the client never reorders or
// coalesces. Outbound audio frames carry no acknowledgment.
type Client struct {
	conn *websocket.Conn

	events chan Event
	stop   chan struct{}
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
	lastPong  atomic.Int64

	errMu sync.Mutex
	err   error
}

// Dial opens the WebSocket channel. Failure wraps voice.ErrConnection.
func Dial(ctx context.Context, endpoint string, opts Options) (*Client, error) {
	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	var header http.Header
	if token := strings.TrimSpace(opts.AuthToken); token != "" {
		header = http.Header{"Authorization": {"Bearer " + token}}
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s (HTTP %d): %w: %v", endpoint, resp.StatusCode, voice.ErrConnection, err)
		}
		return nil, fmt.Errorf("dial %s: %w: %v", endpoint, voice.ErrConnection, err)
	}
	conn.SetReadLimit(readLimitBytes)

	c := &Client{
		conn:   conn,
		events: make(chan Event, 64),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Events yields typed server messages until the connection ends. The channel
// is closed on disconnect or protocol failure; Err reports why.
func (c *Client) Events() <-chan Event {
	return c.events
}

// StartStreaming asks the backend to begin a transcription turn.
func (c *Client) StartStreaming(language string) error {
	return c.sendJSON(startStreamingMessage{Type: "start_streaming", Language: language})
}

// StopStreaming signals the end of the captured utterance.
func (c *Client) StopStreaming() error {
	return c.sendJSON(stopStreamingMessage{Type: "stop_streaming"})
}

// Ping sends the liveness probe. The eventual pong arrives on Events and
// updates LastPong; absence within the caller's deadline is the liveness
// signal. The client does not reconnect on its own.
func (c *Client) Ping() error {
	return c.sendJSON(pingMessage{Type: "ping"})
}

// LastPong reports when the most recent pong arrived (zero before the
// first).
func (c *Client) LastPong() time.Time {
	nanos := c.lastPong.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

// SendAudio transmits one captured chunk as a binary frame.
func (c *Client) SendAudio(data []byte) error {
	if c.closed.Load() {
		return fmt.Errorf("send audio: %w", voice.ErrConnection)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("send audio frame: %w: %v", voice.ErrConnection, err)
	}
	return nil
}

// Close shuts the channel down. Safe to call any number of times.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.stop)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod),
		)
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
	<-c.done
	return nil
}

// Err returns the terminal connection error, if any, once Events closes.
func (c *Client) Err() error {
	select {
	case <-c.done:
	default:
		return nil
	}
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Client) sendJSON(v any) error {
	if c.closed.Load() {
		return fmt.Errorf("send control: %w", voice.ErrConnection)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("send control frame: %w: %v", voice.ErrConnection, err)
	}
	return nil
}

func (c *Client) setErr(err error) {
	if err == nil {
		return
	}
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.events)

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || c.closed.Load() {
				return
			}
			c.setErr(fmt.Errorf("read server frame: %w: %v", voice.ErrConnection, err))
			return
		}

		if messageType != websocket.TextMessage {
			c.setErr(fmt.Errorf("unexpected %d frame from server: %w", messageType, voice.ErrProtocol))
			return
		}

		event, err := decodeServerFrame(data)
		if err != nil {
			c.setErr(err)
			return
		}

		if _, ok := event.(PongEvent); ok {
			c.lastPong.Store(time.Now().UnixNano())
		}

		// Blocking delivery preserves the backend's emission order.
		select {
		case c.events <- event:
		case <-c.stop:
			return
		}
	}
}
