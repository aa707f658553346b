package neo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode"
)

// Kind classifies an inbound frame.
type Kind int

const (
	// KindOther is any valid JSON frame the bridge does not act on.
	KindOther Kind = iota

	// KindTurnUpdate carries an incremental or final generation fragment.
	KindTurnUpdate

	// KindChatCreated acknowledges a create_chat command.
	KindChatCreated

	// KindProtocolError is a neo_error frame.
	KindProtocolError
)

func (k Kind) String() string {
	switch k {
	case KindTurnUpdate:
		return "turn_update"
	case KindChatCreated:
		return "chat_created"
	case KindProtocolError:
		return "protocol_error"
	default:
		return "other"
	}
}

// Frame is one decoded inbound message. Seq is its position in the
// connection's frame log and is assigned on append.
type Frame struct {
	Seq    int
	Kind   Kind
	Turn   *Turn
	Chat   *Chat
	Detail string
	Raw    json.RawMessage
}

// Turn is the turn body of a generation fragment.
type Turn struct {
	TurnKey    TurnKey     `json:"turn_key"`
	Author     Author      `json:"author"`
	Candidates []Candidate `json:"candidates"`
}

// Author identifies who produced a turn.
type Author struct {
	AuthorID string `json:"author_id"`
	Name     string `json:"name,omitempty"`
}

// Candidate is one generated candidate of a turn.
type Candidate struct {
	CandidateID     string  `json:"candidate_id,omitempty"`
	RawContent      string  `json:"raw_content"`
	IsFinal         bool    `json:"is_final"`
	TTIImageRelPath *string `json:"tti_image_rel_path,omitempty"`
}

// Chat is the body of a chat creation acknowledgement.
type Chat struct {
	ChatID      string `json:"chat_id"`
	CreatorID   string `json:"creator_id,omitempty"`
	CharacterID string `json:"character_id,omitempty"`
}

// IsHuman reports whether the author id denotes a human participant. Human
// ids are purely numeric; the generated character uses non-numeric ids.
func (a Author) IsHuman() bool {
	if a.AuthorID == "" {
		return false
	}
	for _, r := range a.AuthorID {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Primary returns the first candidate of the turn, if any.
func (t *Turn) Primary() (Candidate, bool) {
	if t == nil || len(t.Candidates) == 0 {
		return Candidate{}, false
	}
	return t.Candidates[0], true
}

// errorPayload is the payload shape of neo_error frames that carry their
// detail under payload.detail instead of comment.
type errorPayload struct {
	Detail string `json:"detail"`
}

// Decode classifies a raw inbound message. Only invalid JSON is an error;
// valid JSON of an unexpected shape decodes to KindOther so the receive loop
// keeps it in the log.
func Decode(data []byte) (Frame, error) {
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return Frame{}, ErrMalformedFrame
	}

	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	frame := Frame{Kind: KindOther, Raw: raw}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		// Valid JSON that is not an object: arrays, strings, numbers.
		return frame, nil
	}

	var command string
	if v, ok := fields["command"]; ok {
		_ = json.Unmarshal(v, &command)
	}

	if command == CommandError {
		frame.Kind = KindProtocolError
		frame.Detail = errorDetail(fields)
		return frame, nil
	}

	if v, ok := fields["turn"]; ok && !isNull(v) {
		var turn Turn
		if err := json.Unmarshal(v, &turn); err == nil {
			frame.Kind = KindTurnUpdate
			frame.Turn = &turn
			return frame, nil
		}
	}

	if v, ok := fields["chat"]; ok && !isNull(v) {
		var chat Chat
		if err := json.Unmarshal(v, &chat); err == nil {
			frame.Kind = KindChatCreated
			frame.Chat = &chat
			return frame, nil
		}
	}

	return frame, nil
}

// errorDetail extracts the human readable detail of a neo_error frame:
// comment first, then payload.detail.
func errorDetail(fields map[string]json.RawMessage) string {
	if v, ok := fields["comment"]; ok {
		var comment string
		if err := json.Unmarshal(v, &comment); err == nil && comment != "" {
			return comment
		}
	}

	if v, ok := fields["payload"]; ok {
		var payload errorPayload
		if err := json.Unmarshal(v, &payload); err == nil && payload.Detail != "" {
			return payload.Detail
		}
	}

	return unknownErrorDetail
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// Encode marshals an outbound envelope.
func Encode(env Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encoding %s envelope: %w", env.Command, err)
	}
	return data, nil
}
