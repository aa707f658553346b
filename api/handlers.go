package api

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/neolink/pkg/conn"
	"github.com/papercomputeco/neolink/pkg/relay"
	"github.com/papercomputeco/neolink/pkg/session"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	// Channel is set when the user is restricted to another channel.
	Channel string `json:"channel,omitempty"`
}

// StopResponse reports whether a conversation was dropped.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// GuildChannelRequest is the body of PUT /guilds/:guild_id/channel.
type GuildChannelRequest struct {
	ChannelID string `json:"channel_id"`
}

type relayFunc func(ctx context.Context, req relay.Request) (*relay.Response, error)

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

func (s *Server) handleTalk(c *fiber.Ctx) error {
	return s.handleRelayRequest(c, "talk", s.relay.Talk)
}

func (s *Server) handleMessage(c *fiber.Ctx) error {
	return s.handleRelayRequest(c, "message", s.relay.Relay)
}

func (s *Server) handleNewChat(c *fiber.Ctx) error {
	return s.handleRelayRequest(c, "newchat", s.relay.NewChat)
}

func (s *Server) handleRelayRequest(c *fiber.Ctx, op string, fn relayFunc) error {
	var req relay.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	req.UserID = strings.TrimSpace(req.UserID)
	req.ChannelID = strings.TrimSpace(req.ChannelID)
	if req.UserID == "" || req.ChannelID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "user_id and channel_id are required"})
	}

	resp, err := fn(c.UserContext(), req)
	if err != nil {
		return s.writeError(c, op, err)
	}

	return c.JSON(resp)
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	stopped, err := s.relay.Stop(c.UserContext(), c.Params("user_id"))
	if err != nil {
		return s.writeError(c, "stop", err)
	}
	return c.JSON(StopResponse{Stopped: stopped})
}

func (s *Server) handleResetMemory(c *fiber.Ctx) error {
	existed, err := s.relay.ResetMemory(c.UserContext(), c.Params("user_id"))
	if err != nil {
		return s.writeError(c, "reset memory", err)
	}
	if !existed {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: relay.ErrNoConversation.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleSetGuildChannel(c *fiber.Ctx) error {
	var body GuildChannelRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(body.ChannelID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "channel_id is required"})
	}

	if err := s.relay.SetGuildChannel(c.UserContext(), c.Params("guild_id"), body.ChannelID); err != nil {
		return s.writeError(c, "set guild channel", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) writeError(c *fiber.Ctx, op string, err error) error {
	status := statusFor(err)
	body := ErrorResponse{Error: err.Error()}

	var restricted *relay.RestrictedError
	if errors.As(err, &restricted) {
		body.Channel = restricted.Target
	}

	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("op", op),
			zap.Int("status", status),
			zap.Error(err),
		)
	} else {
		s.logger.Debug("request rejected",
			zap.String("op", op),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	return c.Status(status).JSON(body)
}

func statusFor(err error) int {
	var (
		connectErr *conn.ConnectError
		createErr  *session.CreateError
		turnErr    *session.TurnError
	)

	switch {
	case errors.Is(err, relay.ErrChannelRestricted):
		return fiber.StatusForbidden
	case errors.Is(err, relay.ErrBusy):
		return fiber.StatusConflict
	case errors.Is(err, relay.ErrNoConversation):
		return fiber.StatusNotFound
	case errors.Is(err, relay.ErrEmptyMessage), errors.Is(err, relay.ErrGuildRequired):
		return fiber.StatusBadRequest
	case errors.As(err, &connectErr), errors.As(err, &createErr), errors.As(err, &turnErr):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
