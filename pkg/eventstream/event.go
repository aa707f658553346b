package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeReplyDelivered is emitted after a character reply is delivered.
	EventTypeReplyDelivered = "neolink.reply.delivered"
)

// ReplyEvent is a transport-neutral event payload for one delivered reply.
type ReplyEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	Exchange      Exchange    `json:"exchange"`
}

// EventSource identifies who the reply was for.
type EventSource struct {
	CharacterID string `json:"character_id"`
	UserID      string `json:"user_id,omitempty"`
	ChannelID   string `json:"channel_id,omitempty"`
	GuildID     string `json:"guild_id,omitempty"`
}

// Exchange is the prompt and reply of one turn.
type Exchange struct {
	SessionID  string `json:"session_id"`
	Prompt     string `json:"prompt"`
	Reply      string `json:"reply"`
	Final      bool   `json:"final"`
	NoResponse bool   `json:"no_response"`
	NewSession bool   `json:"new_session"`
	DurationMs int64  `json:"duration_ms"`
}

// NewReplyEvent stamps a new event with an id and the current time.
func NewReplyEvent(source EventSource, exchange Exchange) *ReplyEvent {
	return &ReplyEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeReplyDelivered,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Exchange:      exchange,
	}
}
