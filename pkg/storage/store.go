package storage

import (
	"context"
	"fmt"
)

// Store is the domain view over a Driver.
type Store struct {
	driver Driver
}

// NewStore wraps driver.
func NewStore(driver Driver) *Store {
	return &Store{driver: driver}
}

// Session returns the user's chat id. ok is false when the user has none.
func (s *Store) Session(ctx context.Context, userID string) (string, bool, error) {
	return s.lookup(ctx, ScopeSession, userID)
}

// SetSession records the user's chat id.
func (s *Store) SetSession(ctx context.Context, userID, chatID string) error {
	return s.driver.Put(ctx, ScopeSession, userID, chatID)
}

// ForgetSession drops the user's chat id. Returns true if one was stored.
func (s *Store) ForgetSession(ctx context.Context, userID string) (bool, error) {
	return s.driver.Delete(ctx, ScopeSession, userID)
}

// UserChannel returns the channel the user is locked to.
func (s *Store) UserChannel(ctx context.Context, userID string) (string, bool, error) {
	return s.lookup(ctx, ScopeUserChannel, userID)
}

// LockUserChannel locks the user to channelID.
func (s *Store) LockUserChannel(ctx context.Context, userID, channelID string) error {
	return s.driver.Put(ctx, ScopeUserChannel, userID, channelID)
}

// UnlockUserChannel removes the user's channel lock.
func (s *Store) UnlockUserChannel(ctx context.Context, userID string) (bool, error) {
	return s.driver.Delete(ctx, ScopeUserChannel, userID)
}

// GuildChannel returns the only channel the guild allows.
func (s *Store) GuildChannel(ctx context.Context, guildID string) (string, bool, error) {
	return s.lookup(ctx, ScopeGuildChannel, guildID)
}

// SetGuildChannel restricts the guild to channelID.
func (s *Store) SetGuildChannel(ctx context.Context, guildID, channelID string) error {
	return s.driver.Put(ctx, ScopeGuildChannel, guildID, channelID)
}

// ChannelAllowed reports whether userID may talk in channelID of guildID.
// The guild lock is checked first, then the user's own lock. When the answer
// is no, target is the channel they should use instead. An empty guildID
// skips the guild check.
func (s *Store) ChannelAllowed(ctx context.Context, guildID, channelID, userID string) (allowed bool, target string, err error) {
	if guildID != "" {
		locked, ok, err := s.GuildChannel(ctx, guildID)
		if err != nil {
			return false, "", err
		}
		if ok && locked != channelID {
			return false, locked, nil
		}
	}

	locked, ok, err := s.UserChannel(ctx, userID)
	if err != nil {
		return false, "", err
	}
	if !ok {
		return true, "", nil
	}
	return locked == channelID, locked, nil
}

// Close closes the underlying driver.
func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) lookup(ctx context.Context, scope Scope, key string) (string, bool, error) {
	v, err := s.driver.Get(ctx, scope, key)
	if IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", scope, err)
	}
	return v, true, nil
}
