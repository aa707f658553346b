// Package relay keeps per-user conversations with the character: which chat
// each user is in, which channel they talk from, and one request at a time
// per user.
package relay

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/papercomputeco/neolink/pkg/client"
	"github.com/papercomputeco/neolink/pkg/eventstream"
	"github.com/papercomputeco/neolink/pkg/logger"
	"github.com/papercomputeco/neolink/pkg/reply"
	"github.com/papercomputeco/neolink/pkg/storage"
	"github.com/papercomputeco/neolink/pkg/utils"
	"github.com/papercomputeco/neolink/pkg/worker"
)

const (
	// IntroductionPrompt is sent when a user starts talking without a message.
	IntroductionPrompt = "Please introduce yourself and start the conversation with me."

	// NewChatPrompt opens a fresh chat.
	NewChatPrompt = "Hi"
)

// Config is the configuration options for a Service.
type Config struct {
	Asker client.Asker
	Store *storage.Store

	// Pool receives a reply event after every answer. Optional.
	Pool *worker.Pool

	// CharacterID is recorded on emitted events.
	CharacterID string

	// NarratorPrefix marks lines to italicize.
	NarratorPrefix string

	// ChunkLimit defaults to reply.DefaultChunkLimit.
	ChunkLimit int

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Request identifies who is talking and where.
type Request struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id,omitempty"`
	Message   string `json:"message,omitempty"`

	// NewChat drops the stored chat before talking.
	NewChat bool `json:"new_chat,omitempty"`
}

// Response is a formatted answer.
type Response struct {
	SessionID  string   `json:"session_id"`
	Text       string   `json:"text"`
	Chunks     []string `json:"chunks"`
	Final      bool     `json:"final"`
	NoResponse bool     `json:"no_response"`
	NewSession bool     `json:"new_session"`
}

// Service implements the conversation commands.
type Service struct {
	config Config
	logger *zap.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// New returns a Service.
func New(c Config) *Service {
	if c.ChunkLimit <= 0 {
		c.ChunkLimit = reply.DefaultChunkLimit
	}
	return &Service{
		config: c,
		logger: logger.OrNop(c.Logger),
		active: make(map[string]struct{}),
	}
}

// Talk starts or continues the user's conversation from this channel and
// locks the user to it. An empty message asks the character to introduce
// itself.
func (s *Service) Talk(ctx context.Context, req Request) (*Response, error) {
	if err := s.ensureChannel(ctx, req); err != nil {
		return nil, err
	}

	release, err := s.acquire(req.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	sessionID := ""
	if !req.NewChat {
		id, ok, err := s.config.Store.Session(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		if ok {
			sessionID = id
		}
	}

	if err := s.config.Store.LockUserChannel(ctx, req.UserID, req.ChannelID); err != nil {
		return nil, err
	}

	prompt := strings.TrimSpace(req.Message)
	if prompt == "" {
		prompt = IntroductionPrompt
	}

	return s.ask(ctx, req, prompt, sessionID)
}

// Relay forwards a plain message for a user who already has a conversation.
func (s *Service) Relay(ctx context.Context, req Request) (*Response, error) {
	sessionID, ok, err := s.config.Store.Session(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoConversation
	}

	if err := s.ensureChannel(ctx, req); err != nil {
		return nil, err
	}

	prompt := strings.TrimSpace(req.Message)
	if prompt == "" {
		return nil, ErrEmptyMessage
	}

	release, err := s.acquire(req.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.ask(ctx, req, prompt, sessionID)
}

// NewChat drops the user's chat and opens a fresh one from this channel.
func (s *Service) NewChat(ctx context.Context, req Request) (*Response, error) {
	if err := s.ensureChannel(ctx, req); err != nil {
		return nil, err
	}

	release, err := s.acquire(req.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.config.Store.LockUserChannel(ctx, req.UserID, req.ChannelID); err != nil {
		return nil, err
	}
	if _, err := s.config.Store.ForgetSession(ctx, req.UserID); err != nil {
		return nil, err
	}

	return s.ask(ctx, req, NewChatPrompt, "")
}

// Stop ends the user's conversation and unlocks their channel. Returns true
// if there was a conversation.
func (s *Service) Stop(ctx context.Context, userID string) (bool, error) {
	existed, err := s.config.Store.ForgetSession(ctx, userID)
	if err != nil {
		return false, err
	}
	if _, err := s.config.Store.UnlockUserChannel(ctx, userID); err != nil {
		return false, err
	}
	return existed, nil
}

// ResetMemory forgets the user's chat but keeps their channel lock.
func (s *Service) ResetMemory(ctx context.Context, userID string) (bool, error) {
	return s.config.Store.ForgetSession(ctx, userID)
}

// SetGuildChannel restricts a guild to one channel.
func (s *Service) SetGuildChannel(ctx context.Context, guildID, channelID string) error {
	if guildID == "" {
		return ErrGuildRequired
	}
	return s.config.Store.SetGuildChannel(ctx, guildID, channelID)
}

func (s *Service) ask(ctx context.Context, req Request, prompt, sessionID string) (*Response, error) {
	s.logger.Debug("asking character",
		zap.String("user_id", req.UserID),
		zap.String("chat_id", sessionID),
		zap.String("prompt", utils.Truncate(prompt, 80)),
	)

	answer, err := s.config.Asker.Ask(ctx, prompt, sessionID)
	if err != nil {
		s.logger.Warn("ask failed",
			zap.String("user_id", req.UserID),
			zap.String("chat_id", sessionID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("asking character: %w", err)
	}

	if err := s.config.Store.SetSession(ctx, req.UserID, answer.SessionID); err != nil {
		return nil, err
	}

	s.publish(req, prompt, answer)

	return &Response{
		SessionID:  answer.SessionID,
		Text:       answer.Text,
		Chunks:     reply.Format(answer.Text, s.config.NarratorPrefix, s.config.ChunkLimit),
		Final:      answer.Final,
		NoResponse: answer.NoResponse,
		NewSession: answer.NewSession,
	}, nil
}

func (s *Service) publish(req Request, prompt string, answer *client.Answer) {
	if s.config.Pool == nil {
		return
	}

	s.config.Pool.Enqueue(worker.Job{Event: eventstream.NewReplyEvent(
		eventstream.EventSource{
			CharacterID: s.config.CharacterID,
			UserID:      req.UserID,
			ChannelID:   req.ChannelID,
			GuildID:     req.GuildID,
		},
		eventstream.Exchange{
			SessionID:  answer.SessionID,
			Prompt:     prompt,
			Reply:      answer.Text,
			Final:      answer.Final,
			NoResponse: answer.NoResponse,
			NewSession: answer.NewSession,
			DurationMs: answer.Duration.Milliseconds(),
		},
	)})
}

func (s *Service) ensureChannel(ctx context.Context, req Request) error {
	allowed, target, err := s.config.Store.ChannelAllowed(ctx, req.GuildID, req.ChannelID, req.UserID)
	if err != nil {
		return err
	}
	if !allowed {
		return &RestrictedError{Target: target}
	}
	return nil
}

// acquire marks userID busy. The returned func releases it.
func (s *Service) acquire(userID string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.active[userID]; busy {
		return nil, ErrBusy
	}
	s.active[userID] = struct{}{}

	return func() {
		s.mu.Lock()
		delete(s.active, userID)
		s.mu.Unlock()
	}, nil
}
