package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrChannelRestricted matches any *RestrictedError.
	ErrChannelRestricted = errors.New("channel restricted")

	// ErrBusy is returned while the user already has a request in flight.
	ErrBusy = errors.New("a request for this user is already in progress")

	// ErrNoConversation is returned when relaying for a user with no chat.
	ErrNoConversation = errors.New("no active conversation")

	// ErrEmptyMessage is returned when relaying an empty message.
	ErrEmptyMessage = errors.New("empty message")

	// ErrGuildRequired is returned when a guild-only operation has no guild.
	ErrGuildRequired = errors.New("guild id required")
)

// RestrictedError is returned when the user may not talk in the channel.
type RestrictedError struct {
	// Target is the channel the user should use instead, if known.
	Target string
}

func (e *RestrictedError) Error() string {
	if e.Target == "" {
		return "restricted to the channel you started talking in"
	}
	return fmt.Sprintf("restricted to channel %s", e.Target)
}

func (e *RestrictedError) Is(target error) bool {
	return target == ErrChannelRestricted
}
