package api

import (
	"errors"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/neolink/pkg/logger"
	"github.com/papercomputeco/neolink/pkg/relay"
)

// Server is the API server in front of the relay service.
type Server struct {
	config Config
	relay  *relay.Service
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
func NewServer(config Config, svc *relay.Service, log *zap.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("relay service is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		relay:  svc,
		logger: logger.OrNop(log),
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/talk", s.handleTalk)
	app.Post("/messages", s.handleMessage)
	app.Post("/newchat", s.handleNewChat)
	app.Post("/users/:user_id/stop", s.handleStop)
	app.Delete("/users/:user_id/memory", s.handleResetMemory)
	app.Put("/guilds/:guild_id/channel", s.handleSetGuildChannel)

	if config.MCP != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCP.Handler()))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
