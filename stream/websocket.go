package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultURL is the provider's filtered-stream endpoint.
const DefaultURL = "wss://stream.tweetwire.io/v1/filter"

// Timeouts and keepalive intervals for the websocket transport.
const (
	handshakeTimeout = 5 * time.Second
	readTimeout      = 90 * time.Second
	writeTimeout     = 10 * time.Second
	pingInterval     = 30 * time.Second
)

// WebsocketConfig configures the concrete stream source. The four
// credentials come from the unlocked vault profile.
type WebsocketConfig struct {
	URL string

	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

// WebsocketSource dials the provider's filtered-stream websocket endpoint.
type WebsocketSource struct {
	cfg WebsocketConfig
}

// NewWebsocketSource creates a Source from stream credentials.
func NewWebsocketSource(cfg WebsocketConfig) *WebsocketSource {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	return &WebsocketSource{cfg: cfg}
}

type subscribeFrame struct {
	Handles  []string `json:"handles"`
	Keywords []string `json:"keywords"`
}

// eventFrame is the provider's wire shape for one message. Heartbeats have
// Type "heartbeat" and are skipped; error frames carry an Error code.
type eventFrame struct {
	Type         string `json:"type"`
	AuthorHandle string `json:"author_handle"`
	Text         string `json:"text"`
	IsRepost     bool   `json:"is_repost"`
	IsReply      bool   `json:"is_reply"`
	Error        string `json:"error"`
}

// Connect dials the stream and subscribes with the filter. HTTP 420/429 on
// the handshake map to ErrRateLimited, 401/403 to AuthError, anything else
// to ErrTransient.
func (s *WebsocketSource) Connect(ctx context.Context, f Filter) (Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.cfg.AccessToken)
	header.Set("X-Consumer-Key", s.cfg.ConsumerKey)

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		if resp != nil {
			switch resp.StatusCode {
			case 420, http.StatusTooManyRequests:
				return nil, fmt.Errorf("handshake status %d: %w", resp.StatusCode, ErrRateLimited)
			case http.StatusUnauthorized, http.StatusForbidden:
				return nil, &AuthError{Reason: fmt.Sprintf("handshake status %d", resp.StatusCode)}
			}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("dial %s: %v: %w", s.cfg.URL, err, ErrTransient)
	}

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(subscribeFrame{Handles: f.Handles, Keywords: f.Keywords}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe: %v: %w", err, ErrTransient)
	}

	wc := &wsConn{conn: conn, done: make(chan struct{})}
	go wc.keepalive()
	return wc, nil
}

type wsConn struct {
	conn *websocket.Conn

	closeOnce sync.Once
	done      chan struct{}
}

// keepalive pings until the connection is closed; a failed ping surfaces as
// a read error in Next.
func (c *wsConn) keepalive() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsConn) Next(ctx context.Context) (Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}

		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return Event{}, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
				return Event{}, fmt.Errorf("server closed connection: %v: %w", err, ErrRateLimited)
			}
			return Event{}, fmt.Errorf("read: %v: %w", err, ErrTransient)
		}

		var frame eventFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			return Event{}, fmt.Errorf("bad frame: %v: %w", err, ErrTransient)
		}

		switch {
		case frame.Error == "rate_limited":
			return Event{}, ErrRateLimited
		case frame.Error != "":
			return Event{}, fmt.Errorf("server error %q: %w", frame.Error, ErrTransient)
		case frame.Type == "heartbeat":
			continue
		}

		return Event{
			AuthorHandle: frame.AuthorHandle,
			Text:         frame.Text,
			IsRepost:     frame.IsRepost,
			IsReply:      frame.IsReply,
		}, nil
	}
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}
