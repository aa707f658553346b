// Package client exposes the bridge as a synchronous call: text and an
// optional session id in, reply text and the session id out.
package client

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/neolink/pkg/conn"
	"github.com/papercomputeco/neolink/pkg/logger"
	"github.com/papercomputeco/neolink/pkg/session"
)

// NoResponseText is the answer text when the character produced nothing in
// time.
const NoResponseText = "No response."

// Asker is the synchronous bridge interface.
type Asker interface {
	Ask(ctx context.Context, text, sessionID string) (*Answer, error)
}

// Answer is the outcome of one Ask.
type Answer struct {
	Text       string
	SessionID  string
	Final      bool
	NoResponse bool
	NewSession bool
	Duration   time.Duration
}

// Hooks are optional observers.
type Hooks struct {
	// OnAnswer is called after every successful Ask.
	OnAnswer func(prompt string, answer *Answer)
}

// Config is the configuration options for a Client.
type Config struct {
	// URL is the WebSocket endpoint.
	URL string

	// Token is the user's neo access token.
	Token string

	// CharacterID is the character to talk to.
	CharacterID string

	// CreatorID is sent on chat creation.
	CreatorID string

	// WithGreeting asks the character to greet new chats. Nil means true.
	WithGreeting *bool

	HandshakeTimeout time.Duration
	CreateTimeout    time.Duration
	ReplyTimeout     time.Duration
	PollInterval     time.Duration

	// Dialer overrides the WebSocket dialer.
	Dialer conn.Dialer

	Hooks Hooks

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Client opens a dedicated connection per operation. It holds no
// connection state between calls and is safe for concurrent use.
type Client struct {
	config   Config
	sessions *session.Manager
	logger   *zap.Logger
}

// New returns a Client.
func New(c Config) *Client {
	log := logger.OrNop(c.Logger)
	return &Client{
		config: c,
		sessions: session.NewManager(session.Config{
			CharacterID:   c.CharacterID,
			CreatorID:     c.CreatorID,
			CreateTimeout: c.CreateTimeout,
			ReplyTimeout:  c.ReplyTimeout,
			PollInterval:  c.PollInterval,
			WithGreeting:  c.WithGreeting,
			Logger:        log,
		}),
		logger: log,
	}
}

// Ask sends text to the character and waits for the reply. An empty
// sessionID creates a new chat first.
func (c *Client) Ask(ctx context.Context, text, sessionID string) (*Answer, error) {
	start := time.Now()
	answer := &Answer{SessionID: sessionID}

	if sessionID == "" {
		id, err := c.EnsureSession(ctx, "")
		if err != nil {
			return nil, err
		}
		answer.SessionID = id
		answer.NewSession = true
	}

	cn, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	defer cn.Close()

	reply, err := c.sessions.SendAndAwait(ctx, cn, answer.SessionID, text)
	if err != nil {
		return nil, err
	}

	answer.Text = reply.Text
	answer.Final = reply.Final
	answer.NoResponse = reply.NoResponse
	if reply.NoResponse {
		answer.Text = NoResponseText
	}
	answer.Duration = time.Since(start)

	c.logger.Debug("answer received",
		zap.String("chat_id", answer.SessionID),
		zap.Bool("final", answer.Final),
		zap.Bool("no_response", answer.NoResponse),
		zap.Duration("duration", answer.Duration),
	)

	if c.config.Hooks.OnAnswer != nil {
		c.config.Hooks.OnAnswer(text, answer)
	}
	return answer, nil
}

// EnsureSession creates a chat on its own connection. requestedID may be
// empty to get a generated id.
func (c *Client) EnsureSession(ctx context.Context, requestedID string) (string, error) {
	cn, err := c.open(ctx)
	if err != nil {
		return "", err
	}
	defer cn.Close()

	return c.sessions.CreateSession(ctx, cn, requestedID)
}

func (c *Client) open(ctx context.Context) (*conn.Conn, error) {
	return conn.Open(ctx, conn.Config{
		URL:              c.config.URL,
		Token:            c.config.Token,
		HandshakeTimeout: c.config.HandshakeTimeout,
		Dialer:           c.config.Dialer,
		Logger:           c.logger,
	})
}
