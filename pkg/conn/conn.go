// Package conn owns one authenticated WebSocket connection to the neo chat
// service. A receive goroutine decodes every inbound message and appends it
// to the connection's frame log; callers read the log through correlators.
package conn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/papercomputeco/neolink/pkg/framelog"
	"github.com/papercomputeco/neolink/pkg/logger"
	"github.com/papercomputeco/neolink/pkg/neo"
)

// DefaultHandshakeTimeout bounds the WebSocket handshake.
const DefaultHandshakeTimeout = 5 * time.Second

// Config is the configuration for opening a connection.
type Config struct {
	// URL is the WebSocket endpoint. Defaults to neo.DefaultURL.
	URL string

	// Token is the user's neo access token, sent once at handshake.
	Token string

	// HandshakeTimeout bounds how long Open waits for the handshake.
	HandshakeTimeout time.Duration

	// Dialer opens the transport. Defaults to a gorilla/websocket dialer.
	Dialer Dialer

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Conn is an open connection. It is owned by exactly one client call.
type Conn struct {
	url    string
	socket Socket
	frames *framelog.Log
	logger *zap.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// AuthHeader builds the handshake headers carrying the token.
func AuthHeader(token string) http.Header {
	h := http.Header{}
	h.Set("Cookie", `HTTP_AUTHORIZATION="Token `+token+`"`)
	return h
}

// Open dials the service and starts the receive goroutine. It returns a
// *ConnectError when the handshake fails or is not confirmed in time.
func Open(ctx context.Context, cfg Config) (*Conn, error) {
	if cfg.URL == "" {
		cfg.URL = neo.DefaultURL
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.Dialer == nil {
		cfg.Dialer = NewWebsocketDialer(cfg.HandshakeTimeout)
	}
	log := logger.OrNop(cfg.Logger)

	dialCtx, cancel := context.WithTimeout(ctx, cfg.HandshakeTimeout)
	defer cancel()

	socket, err := cfg.Dialer.Dial(dialCtx, cfg.URL, AuthHeader(cfg.Token))
	if err != nil {
		return nil, &ConnectError{URL: cfg.URL, Err: err}
	}

	c := &Conn{
		url:    cfg.URL,
		socket: socket,
		frames: framelog.New(),
		logger: log,
		done:   make(chan struct{}),
	}
	go c.receive()

	log.Debug("connection opened", zap.String("url", cfg.URL))
	return c, nil
}

// Send encodes env and writes it as one text message.
func (c *Conn) Send(ctx context.Context, env neo.Envelope) error {
	if c == nil || c.socket == nil {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := neo.Encode(env)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.socket.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("writing %s: %w", env.Command, err)
	}

	c.logger.Debug("frame sent", zap.String("command", env.Command))
	return nil
}

// Frames returns the connection's append-only frame log.
func (c *Conn) Frames() *framelog.Log {
	return c.frames
}

// Done is closed once the receive goroutine has exited.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close releases the socket. Safe to call more than once and on a nil Conn.
func (c *Conn) Close() error {
	if c == nil || c.socket == nil {
		return nil
	}

	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.socket.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		c.writeMu.Unlock()

		c.closeErr = c.socket.Close()
		c.logger.Debug("connection closed", zap.String("url", c.url))
	})

	return c.closeErr
}

// receive runs until the socket errors or is closed.
func (c *Conn) receive() {
	defer close(c.done)

	for {
		msgType, data, err := c.socket.ReadMessage()
		if err != nil {
			if !isExpectedClose(err) {
				c.logger.Debug("receive loop stopped", zap.Error(err))
			}
			return
		}

		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		frame, err := neo.Decode(data)
		if err != nil {
			c.logger.Debug("dropping malformed frame",
				zap.Int("bytes", len(data)),
				zap.Error(err),
			)
			continue
		}

		seq := c.frames.Append(frame)
		c.logger.Debug("frame received",
			zap.Int("seq", seq),
			zap.Stringer("kind", frame.Kind),
		)
	}
}

func isExpectedClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	return errors.Is(err, net.ErrClosed)
}
