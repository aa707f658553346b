package conn

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Socket is the message-oriented transport a Conn reads from and writes to.
// *websocket.Conn satisfies it.
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a Socket.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Socket, error)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	dialer *websocket.Dialer
}

// NewWebsocketDialer returns a Dialer backed by gorilla/websocket.
func NewWebsocketDialer(handshakeTimeout time.Duration) *WebsocketDialer {
	return &WebsocketDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

// Dial implements Dialer.
func (d *WebsocketDialer) Dial(ctx context.Context, url string, header http.Header) (Socket, error) {
	ws, resp, err := d.dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return ws, nil
}
