// Package session creates chats and exchanges turns over an open
// connection, translating correlator outcomes into replies and typed errors.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/neolink/pkg/correlator"
	"github.com/papercomputeco/neolink/pkg/framelog"
	"github.com/papercomputeco/neolink/pkg/logger"
	"github.com/papercomputeco/neolink/pkg/neo"
)

const (
	// DefaultCreateTimeout bounds the wait for a chat acknowledgement.
	DefaultCreateTimeout = 5 * time.Second

	// DefaultReplyTimeout bounds the wait for a final reply.
	DefaultReplyTimeout = 15 * time.Second
)

// Conn is the part of an open connection the manager needs.
type Conn interface {
	Send(ctx context.Context, env neo.Envelope) error
	Frames() *framelog.Log
}

// Config is the configuration options for a Manager.
type Config struct {
	// CharacterID is the character every chat is created with.
	CharacterID string

	// CreatorID is the user id sent on chat creation.
	CreatorID string

	// CreateTimeout defaults to DefaultCreateTimeout.
	CreateTimeout time.Duration

	// ReplyTimeout defaults to DefaultReplyTimeout.
	ReplyTimeout time.Duration

	// PollInterval defaults to correlator.DefaultPollInterval.
	PollInterval time.Duration

	// WithGreeting asks the character to greet on creation. A nil value
	// means true.
	WithGreeting *bool

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Reply is the outcome of one exchanged turn.
type Reply struct {
	// Text is the final text, the latest partial on timeout, or empty.
	Text string

	// Final is set when the character marked the text final.
	Final bool

	// NoResponse is set when the wait ended without any character text.
	NoResponse bool
}

// Manager runs chat creation and turn exchange.
type Manager struct {
	config Config
	logger *zap.Logger
}

// NewManager returns a manager with defaults applied.
func NewManager(c Config) *Manager {
	if c.CreateTimeout <= 0 {
		c.CreateTimeout = DefaultCreateTimeout
	}
	if c.ReplyTimeout <= 0 {
		c.ReplyTimeout = DefaultReplyTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = correlator.DefaultPollInterval
	}
	if c.WithGreeting == nil {
		greet := true
		c.WithGreeting = &greet
	}

	return &Manager{
		config: c,
		logger: logger.OrNop(c.Logger),
	}
}

// CreateSession creates a chat and returns its id. An empty requestedID gets
// a fresh UUID. If no acknowledgement arrives in time the id is returned
// anyway and the chat is assumed to exist.
func (m *Manager) CreateSession(ctx context.Context, c Conn, requestedID string) (string, error) {
	chatID := requestedID
	if chatID == "" {
		chatID = uuid.NewString()
	}

	cursor := c.Frames().Len()
	env := neo.NewCreateChat(chatID, m.config.CreatorID, m.config.CharacterID, *m.config.WithGreeting)
	if err := c.Send(ctx, env); err != nil {
		return "", fmt.Errorf("sending create_chat: %w", err)
	}

	corr := correlator.New(c.Frames(), cursor, correlator.WithPollInterval(m.config.PollInterval))
	_, err := corr.Await(ctx, time.Now().Add(m.config.CreateTimeout), correlator.ChatCreated(chatID))

	var perr *neo.ProtocolError
	switch {
	case err == nil:
		m.logger.Debug("chat created", zap.String("chat_id", chatID))
		return chatID, nil
	case errors.Is(err, correlator.ErrTimeout):
		m.logger.Warn("no chat acknowledgement, assuming created",
			zap.String("chat_id", chatID),
			zap.Duration("timeout", m.config.CreateTimeout),
		)
		return chatID, nil
	case errors.As(err, &perr):
		return "", &CreateError{ChatID: chatID, Detail: perr.Detail}
	default:
		return "", err
	}
}

// SendAndAwait sends text on sessionID and waits for the character's reply.
// Running out of time is not an error: the reply carries the latest partial
// text or NoResponse.
func (m *Manager) SendAndAwait(ctx context.Context, c Conn, sessionID, text string) (Reply, error) {
	cursor := c.Frames().Len()
	env := neo.NewGenerateTurn(m.config.CharacterID, sessionID, text)
	if err := c.Send(ctx, env); err != nil {
		return Reply{}, fmt.Errorf("sending turn: %w", err)
	}

	watcher := correlator.NewReplyWatcher(sessionID)
	corr := correlator.New(c.Frames(), cursor, correlator.WithPollInterval(m.config.PollInterval))
	_, err := corr.Await(ctx, time.Now().Add(m.config.ReplyTimeout), watcher.Match)

	var perr *neo.ProtocolError
	switch {
	case err == nil:
		latest, _ := watcher.Latest()
		return Reply{Text: latest, Final: true}, nil
	case errors.Is(err, correlator.ErrTimeout):
		latest, ok := watcher.Latest()
		m.logger.Debug("reply wait timed out",
			zap.String("chat_id", sessionID),
			zap.Bool("partial", ok),
		)
		if !ok {
			return Reply{NoResponse: true}, nil
		}
		return Reply{Text: latest}, nil
	case errors.As(err, &perr):
		return Reply{}, &TurnError{ChatID: sessionID, Detail: perr.Detail}
	default:
		return Reply{}, err
	}
}
