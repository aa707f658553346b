// Package neo defines the neo chat WebSocket wire protocol: the outbound
// command envelope and its payloads, and the decoding of inbound frames.
//
// The inbound stream is untagged. Frames are told apart by which top-level
// fields are present, not by an explicit type field.
package neo

const (
	// DefaultURL is the neo chat WebSocket endpoint.
	DefaultURL = "wss://neo.character.ai/ws/"

	// DefaultAPIURL is the neo REST endpoint used for chat lookups.
	DefaultAPIURL = "https://neo.character.ai"

	// CommandCreateChat creates a new one-on-one chat.
	CommandCreateChat = "create_chat"

	// CommandCreateAndGenerateTurn sends a user turn and asks the remote
	// character to generate a reply.
	CommandCreateAndGenerateTurn = "create_and_generate_turn"

	// CommandError is the command field carried by protocol error frames.
	CommandError = "neo_error"

	// VisibilityPrivate is the visibility of every chat neolink creates.
	VisibilityPrivate = "VISIBILITY_PRIVATE"

	// ChatTypeOneOnOne is the chat type of every chat neolink creates.
	ChatTypeOneOnOne = "TYPE_ONE_ON_ONE"
)

// Envelope is the outbound frame wrapper.
type Envelope struct {
	Command string `json:"command"`
	Payload any    `json:"payload"`
}

// CreateChatPayload is the payload of a create_chat command.
type CreateChatPayload struct {
	Chat         ChatSpec `json:"chat"`
	WithGreeting bool     `json:"with_greeting"`
}

// ChatSpec describes the chat to create.
type ChatSpec struct {
	ChatID      string `json:"chat_id"`
	CreatorID   string `json:"creator_id"`
	Visibility  string `json:"visibility"`
	CharacterID string `json:"character_id"`
	Type        string `json:"type"`
}

// GenerateTurnPayload is the payload of a create_and_generate_turn command.
type GenerateTurnPayload struct {
	CharacterID string       `json:"character_id"`
	Turn        OutboundTurn `json:"turn"`
}

// OutboundTurn is the user turn sent for generation. Author is always sent
// as an empty object; the service fills it in from the auth cookie.
type OutboundTurn struct {
	TurnKey    TurnKey             `json:"turn_key"`
	Author     struct{}            `json:"author"`
	Candidates []OutboundCandidate `json:"candidates"`
}

// OutboundCandidate carries the user's text. TTIImageRelPath is always
// serialized, as null when unset.
type OutboundCandidate struct {
	RawContent      string  `json:"raw_content"`
	TTIImageRelPath *string `json:"tti_image_rel_path"`
}

// TurnKey addresses a turn by its chat.
type TurnKey struct {
	ChatID string `json:"chat_id"`
}

// NewCreateChat builds the create_chat envelope.
func NewCreateChat(chatID, creatorID, characterID string, withGreeting bool) Envelope {
	return Envelope{
		Command: CommandCreateChat,
		Payload: CreateChatPayload{
			Chat: ChatSpec{
				ChatID:      chatID,
				CreatorID:   creatorID,
				Visibility:  VisibilityPrivate,
				CharacterID: characterID,
				Type:        ChatTypeOneOnOne,
			},
			WithGreeting: withGreeting,
		},
	}
}

// NewGenerateTurn builds the create_and_generate_turn envelope.
func NewGenerateTurn(characterID, chatID, text string) Envelope {
	return Envelope{
		Command: CommandCreateAndGenerateTurn,
		Payload: GenerateTurnPayload{
			CharacterID: characterID,
			Turn: OutboundTurn{
				TurnKey: TurnKey{ChatID: chatID},
				Candidates: []OutboundCandidate{
					{RawContent: text},
				},
			},
		},
	}
}
