// Package servecmder provides the serve command, which runs the HTTP API in
// front of the relay service.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/papercomputeco/neolink/api"
	apimcp "github.com/papercomputeco/neolink/api/mcp"
	clientutils "github.com/papercomputeco/neolink/pkg/client/utils"
	"github.com/papercomputeco/neolink/pkg/config"
	"github.com/papercomputeco/neolink/pkg/credentials"
	"github.com/papercomputeco/neolink/pkg/dotdir"
	eventstreamutils "github.com/papercomputeco/neolink/pkg/eventstream/utils"
	"github.com/papercomputeco/neolink/pkg/logger"
	"github.com/papercomputeco/neolink/pkg/relay"
	"github.com/papercomputeco/neolink/pkg/storage"
	"github.com/papercomputeco/neolink/pkg/storage/file"
	"github.com/papercomputeco/neolink/pkg/storage/provider"
	"github.com/papercomputeco/neolink/pkg/worker"
)

// sqliteFileName is the default database inside the .neolink directory.
const sqliteFileName = "neolink.db"

type ServeCommander struct {
	flags serveFlags

	configDir string
	debug     bool
	noMCP     bool

	viper  *viper.Viper
	logger *zap.Logger
}

type serveFlags struct {
	url            string
	character      string
	creator        string
	replyTimeout   time.Duration
	createTimeout  time.Duration
	listen         string
	storage        string
	storageTarget  string
	eventsProvider string
	narrator       string
}

var serveFlagKeys = []string{
	config.FlagNeoURL,
	config.FlagCharacter,
	config.FlagCreator,
	config.FlagReplyTimeout,
	config.FlagCreateTimeout,
	config.FlagListen,
	config.FlagStorage,
	config.FlagStorageTarget,
	config.FlagEventsProvider,
	config.FlagNarrator,
}

const serveLongDesc string = `Run the neolink API server.

The server keeps one conversation per user and relays messages to the
character:
  POST   /talk                      Start or continue a conversation
  POST   /messages                  Relay a message into the user's conversation
  POST   /newchat                   Start the user over in a new chat
  POST   /users/:user_id/stop       End the conversation and unlock the channel
  DELETE /users/:user_id/memory     Forget the chat, keep the channel lock
  PUT    /guilds/:guild_id/channel  Restrict a guild to one channel
  /mcp                              MCP server with the "ask" tool

User state is kept by the configured storage provider (memory, file, sqlite,
postgres). Reply events are published to the configured events provider
(nop, kafka).`

const serveShortDesc string = "Run the neolink API server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlagKeys)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagNeoURL, &cmder.flags.url)
	config.AddStringFlag(cmd, config.Flags, config.FlagCharacter, &cmder.flags.character)
	config.AddStringFlag(cmd, config.Flags, config.FlagCreator, &cmder.flags.creator)
	config.AddDurationFlag(cmd, config.Flags, config.FlagReplyTimeout, &cmder.flags.replyTimeout)
	config.AddDurationFlag(cmd, config.Flags, config.FlagCreateTimeout, &cmder.flags.createTimeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.flags.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorage, &cmder.flags.storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageTarget, &cmder.flags.storageTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsProvider, &cmder.flags.eventsProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagNarrator, &cmder.flags.narrator)
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Do not mount the MCP server at /mcp")

	return cmd
}

func (c *ServeCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	cfg := config.FromViper(c.viper)
	if err := cfg.Validate(); err != nil {
		return err
	}

	creds, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	token, err := creds.Token()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := c.newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.Events.Provider,
		Brokers:      cfg.Events.Brokers,
		Topic:        cfg.Events.Topic,
		Logger:       c.logger,
	})
	if err != nil {
		return err
	}
	defer publisher.Close()

	pool, err := worker.NewPool(&worker.Config{
		Publisher: publisher,
		Logger:    c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}
	// Runs before publisher.Close so queued events drain first.
	defer pool.Close()

	cl, err := clientutils.NewClient(ctx, &clientutils.NewClientOpts{
		Config: cfg,
		Token:  token,
		Logger: c.logger,
	})
	if err != nil {
		return err
	}

	svc := relay.New(relay.Config{
		Asker:          cl,
		Store:          store,
		Pool:           pool,
		CharacterID:    cfg.Neo.CharacterID,
		NarratorPrefix: cfg.Format.NarratorPrefix,
		ChunkLimit:     cfg.Format.ChunkLimit,
		Logger:         c.logger,
	})

	mcpServer, err := apimcp.NewServer(apimcp.Config{
		Asker:  cl,
		Noop:   c.noMCP,
		Logger: c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	server, err := api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
		MCP:        mcpServer,
	}, svc, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	c.logger.Info("serving character",
		zap.String("character_id", cfg.Neo.CharacterID),
		zap.String("neo_url", cfg.Neo.URL),
		zap.String("events", cfg.Events.Provider),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		c.logger.Info("received signal, shutting down")
		return server.Shutdown()
	}
}

func (c *ServeCommander) newStore(ctx context.Context, cfg *config.Config) (*storage.Store, error) {
	dir, err := dotdir.NewManager().Target(c.configDir)
	if err != nil {
		return nil, err
	}

	target := storageTarget(cfg.Storage.Provider, cfg.Storage.Target, dir)
	driver, err := provider.NewDriver(ctx, cfg.Storage.Provider, target, c.logger)
	if err != nil {
		return nil, fmt.Errorf("creating storage driver: %w", err)
	}

	return storage.NewStore(driver), nil
}

// storageTarget fills in a default location under dir for file based
// providers.
func storageTarget(providerName, target, dir string) string {
	if target != "" {
		return target
	}

	switch providerName {
	case provider.File:
		return filepath.Join(dir, file.DefaultFileName)
	case provider.SQLite:
		return filepath.Join(dir, sqliteFileName)
	default:
		return target
	}
}
