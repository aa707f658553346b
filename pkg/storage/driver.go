// Package storage persists the per-user state that sits above the bridge:
// which chat a user is in and which channel they, or a guild, are locked to.
package storage

import (
	"context"
)

// Scope partitions the key space of a Driver.
type Scope string

const (
	// ScopeSession maps a user id to their chat id.
	ScopeSession Scope = "session"

	// ScopeUserChannel maps a user id to the channel they talk in.
	ScopeUserChannel Scope = "user_channel"

	// ScopeGuildChannel maps a guild id to its only allowed channel.
	ScopeGuildChannel Scope = "guild_channel"
)

// Scopes lists every scope a Driver must accept.
var Scopes = []Scope{ScopeSession, ScopeUserChannel, ScopeGuildChannel}

// Driver is a scoped string key-value store.
type Driver interface {
	// Get returns the value for key in scope, or a NotFoundError.
	Get(ctx context.Context, scope Scope, key string) (string, error)

	// Put creates or replaces the value for key in scope.
	Put(ctx context.Context, scope Scope, key, value string) error

	// Delete removes key from scope. Returns true if it existed.
	Delete(ctx context.Context, scope Scope, key string) (bool, error)

	// Close closes the store and releases any resources.
	Close() error
}
