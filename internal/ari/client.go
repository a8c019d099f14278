package ari

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Event is one inbound frame from the media server: a channel lifecycle
// notification or a synthetic transport event (EventTransportError,
// EventTransportClose) the adapter raises itself when the socket drops.
type Event struct {
	Type      string          `json:"type"`
	ChannelID string          `json:"channel_id,omitempty"`
	State     string          `json:"state,omitempty"`
	Caller    string          `json:"caller,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
	Err       error           `json:"-"`
}

type requestFrame struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type responseFrame struct {
	ID     uint64          `json:"id"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// inboundFrame is either an Event (no "id") or a responseFrame (has "id").
type inboundFrame struct {
	ID        uint64            `json:"id,omitempty"`
	Type      string            `json:"type,omitempty"`
	ChannelID string            `json:"channel_id,omitempty"`
	State     string            `json:"state,omitempty"`
	Caller    string            `json:"caller,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
	OK        bool              `json:"ok,omitempty"`
	Result    json.RawMessage   `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Client is the Channel Event Adapter's control connection to the media
// server: one WebSocket carrying both directions, request/response
// framing for outbound actions, and an Events() stream for everything
// pushed unsolicited.
type Client struct {
	conn      *websocket.Conn
	events    chan Event
	limiter   *rate.Limiter
	nextID    atomic.Uint64
	mu        sync.Mutex
	pending   map[uint64]chan responseFrame
	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial establishes the control connection, retrying transient failures
// at startup per RetryConfig. host/port/username/password mirror the
// ARI_* environment variables.
func Dial(ctx context.Context, host string, port int, username, password string) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: fmt.Sprintf("%s:%d", host, port), Path: "/events"}
	q := u.Query()
	q.Set("app", "dialer")
	u.RawQuery = q.Encode()

	header := make(map[string][]string)
	if username != "" {
		header["Authorization"] = []string{basicAuth(username, password)}
	}

	conn, err := RetryDial(ctx, DefaultRetryConfig(), func() (*websocket.Conn, error) {
		c, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("ari: dial: %w", err)
	}

	c := &Client{
		conn:    conn,
		events:  make(chan Event, 64),
		limiter: rate.NewLimiter(rate.Limit(20), 5), // smooths bursts of simultaneous re-queue originations
		pending: make(map[uint64]chan responseFrame),
	}
	go c.readLoop()
	return c, nil
}

// Events returns the channel of inbound events, including synthetic
// EventTransportError/EventTransportClose notifications.
func (c *Client) Events() <-chan Event { return c.events }

func (c *Client) readLoop() {
	defer c.closeOnce.Do(func() { close(c.events) })
	for {
		var frame inboundFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.events <- Event{Type: EventTransportClose}
			} else {
				slog.Error("ari: transport error", "error", err)
				c.events <- Event{Type: EventTransportError, Err: err}
			}
			return
		}

		if frame.ID != 0 {
			c.mu.Lock()
			ch, ok := c.pending[frame.ID]
			if ok {
				delete(c.pending, frame.ID)
			}
			c.mu.Unlock()
			if ok {
				ch <- responseFrame{ID: frame.ID, OK: frame.OK, Result: frame.Result, Error: frame.Error}
			}
			continue
		}

		c.events <- Event{
			Type:      frame.Type,
			ChannelID: frame.ChannelID,
			State:     frame.State,
			Caller:    frame.Caller,
			Variables: frame.Variables,
		}
	}
}

// call sends a request frame and blocks for its matching response, or
// until ctx is done.
func (c *Client) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("ari: encode params for %s: %w", method, err)
	}

	respCh := make(chan responseFrame, 1)
	c.mu.Lock()
	c.pending[id] = respCh
	c.mu.Unlock()

	c.writeMu.Lock()
	err = c.conn.WriteJSON(requestFrame{ID: id, Method: method, Params: payload})
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("ari: write %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	case resp := <-respCh:
		if !resp.OK {
			return nil, fmt.Errorf("ari: %s: %s", method, resp.Error)
		}
		return resp.Result, nil
	}
}

// Close tears down the control connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func basicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// waitAnswerTimeout is AnswerTimeoutSeconds as a time.Duration. Nothing in
// this module waits on it: the answer timeout is enforced by the media
// server through the origination's timeout parameter.
const waitAnswerTimeout = AnswerTimeoutSeconds * time.Second
