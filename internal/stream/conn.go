package stream

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn is the subset of *websocket.Conn a shard needs, narrowed to an
// interface so tests can inject a fake connection instead of dialing a
// real socket.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Dialer opens one shard's connection, optionally through proxyURL (C2's
// egress identity for this attempt, nil for a direct dial). The
// production dialer wraps gorilla/websocket; tests supply a fake.
type Dialer interface {
	Dial(ctx context.Context, url string, proxyURL *url.URL) (wsConn, error)
}

// WebsocketDialer is the production Dialer, grounded on
// exchanges/binance/book.go's websocket.DefaultDialer.Dial call.
type WebsocketDialer struct {
	HandshakeTimeout time.Duration
}

func (d WebsocketDialer) Dial(ctx context.Context, endpoint string, proxyURL *url.URL) (wsConn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}
	if dialer.HandshakeTimeout == 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}
	if proxyURL != nil {
		u := proxyURL
		dialer.Proxy = func(*http.Request) (*url.URL, error) { return u, nil }
	}
	c, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func parseProxyURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errors.New("stream: empty proxy URL")
	}
	return url.Parse(raw)
}
