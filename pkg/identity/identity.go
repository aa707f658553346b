// Package identity resolves the neo user behind a token through the
// service's REST API.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/neolink/pkg/logger"
	"github.com/papercomputeco/neolink/pkg/neo"
)

const (
	// DefaultTimeout bounds each REST call.
	DefaultTimeout = 5 * time.Second

	// FallbackCreatorID is used when nothing else is known.
	FallbackCreatorID = "1"
)

// ErrNoRecentChat is returned when the character has no chats for the user.
var ErrNoRecentChat = errors.New("no recent chat")

// Config is the configuration options for a Resolver.
type Config struct {
	// APIURL is the REST base URL. Defaults to neo.DefaultAPIURL.
	APIURL string

	Token       string
	CharacterID string

	// CreatorID is the configured fallback creator id.
	CreatorID string

	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration

	// HTTPClient overrides the default client.
	HTTPClient *http.Client

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Resolver looks up creator ids and recent chats. The creator id is
// resolved once and memoized.
type Resolver struct {
	config Config
	http   *http.Client
	logger *zap.Logger

	once      sync.Once
	creatorID string
}

// RecentChat is the most recent chat between the user and the character.
type RecentChat struct {
	ChatID    string
	CreatorID string
}

// NewResolver returns a Resolver.
func NewResolver(c Config) *Resolver {
	if c.APIURL == "" {
		c.APIURL = neo.DefaultAPIURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: c.Timeout}
	}

	return &Resolver{
		config: c,
		http:   hc,
		logger: logger.OrNop(c.Logger),
	}
}

// CreatorID returns the user id to create chats with. It prefers the
// creator of the most recent chat, then the configured id, then "1". The
// lookup happens at most once.
func (r *Resolver) CreatorID(ctx context.Context) string {
	r.once.Do(func() {
		r.creatorID = r.resolveCreatorID(ctx)
	})
	return r.creatorID
}

func (r *Resolver) resolveCreatorID(ctx context.Context) string {
	chats, err := r.recent(ctx)
	if err != nil {
		r.logger.Debug("creator id lookup failed", zap.Error(err))
	}
	if len(chats) > 0 && chats[0].CreatorID != "" {
		return chats[0].CreatorID
	}
	if r.config.CreatorID != "" {
		return r.config.CreatorID
	}
	return FallbackCreatorID
}

// RecentChat returns the user's most recent chat with the character.
func (r *Resolver) RecentChat(ctx context.Context) (*RecentChat, error) {
	chats, err := r.recent(ctx)
	if err != nil {
		return nil, err
	}
	if len(chats) == 0 || chats[0].ChatID == "" {
		return nil, ErrNoRecentChat
	}
	return &chats[0], nil
}

// recentChatsResponse mirrors GET /chats/recent/{character_id}. creator_id
// arrives as either a string or a number.
type recentChatsResponse struct {
	Chats []struct {
		ChatID    string          `json:"chat_id"`
		CreatorID json.RawMessage `json:"creator_id"`
	} `json:"chats"`
}

func (r *Resolver) recent(ctx context.Context) ([]RecentChat, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	url := fmt.Sprintf("%s/chats/recent/%s", strings.TrimRight(r.config.APIURL, "/"), r.config.CharacterID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+r.config.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching recent chats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching recent chats: unexpected status %d", resp.StatusCode)
	}

	var body recentChatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding recent chats: %w", err)
	}

	out := make([]RecentChat, 0, len(body.Chats))
	for _, c := range body.Chats {
		out = append(out, RecentChat{
			ChatID:    c.ChatID,
			CreatorID: stringify(c.CreatorID),
		})
	}
	return out, nil
}

func stringify(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
