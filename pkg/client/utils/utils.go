// Package clientutils builds a client.Client and identity.Resolver from the
// effective neolink configuration.
package clientutils

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/papercomputeco/neolink/pkg/client"
	"github.com/papercomputeco/neolink/pkg/config"
	"github.com/papercomputeco/neolink/pkg/conn"
	"github.com/papercomputeco/neolink/pkg/identity"
	"github.com/papercomputeco/neolink/pkg/logger"
)

// NewClientOpts is the options for NewClient.
type NewClientOpts struct {
	Config *config.Config
	Token  string

	// Resolver supplies the creator id. Built from Config when nil.
	Resolver *identity.Resolver

	Dialer conn.Dialer
	Hooks  client.Hooks
	Logger *zap.Logger
}

// NewResolver returns a resolver for cfg's character.
func NewResolver(cfg *config.Config, token string, log *zap.Logger) *identity.Resolver {
	return identity.NewResolver(identity.Config{
		APIURL:      cfg.Neo.APIURL,
		Token:       token,
		CharacterID: cfg.Neo.CharacterID,
		CreatorID:   cfg.Neo.CreatorID,
		Logger:      log,
	})
}

// NewClient validates the configuration, resolves the creator id and
// returns a client.
func NewClient(ctx context.Context, opts *NewClientOpts) (*client.Client, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Token == "" {
		return nil, errors.New("neo token is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}

	log := logger.OrNop(opts.Logger)
	cfg := opts.Config

	resolver := opts.Resolver
	if resolver == nil {
		resolver = NewResolver(cfg, opts.Token, log)
	}
	creatorID := resolver.CreatorID(ctx)

	log.Debug("creating client",
		zap.String("url", cfg.Neo.URL),
		zap.String("character_id", cfg.Neo.CharacterID),
		zap.String("creator_id", creatorID),
	)

	greet := cfg.Neo.Greeting()

	return client.New(client.Config{
		URL:              cfg.Neo.URL,
		Token:            opts.Token,
		CharacterID:      cfg.Neo.CharacterID,
		CreatorID:        creatorID,
		WithGreeting:     &greet,
		HandshakeTimeout: cfg.Timeouts.Handshake.Std(),
		CreateTimeout:    cfg.Timeouts.Create.Std(),
		ReplyTimeout:     cfg.Timeouts.Reply.Std(),
		PollInterval:     cfg.Timeouts.PollInterval.Std(),
		Dialer:           opts.Dialer,
		Hooks:            opts.Hooks,
		Logger:           log,
	}), nil
}
