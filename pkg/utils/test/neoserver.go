package testutils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Inbound is one message the stub server received from a client.
type Inbound struct {
	Command string
	Payload json.RawMessage
	Raw     []byte
}

// ChatID extracts the chat id the message addresses, for either outbound
// command.
func (in Inbound) ChatID() string {
	var body struct {
		Chat struct {
			ChatID string `json:"chat_id"`
		} `json:"chat"`
		Turn struct {
			TurnKey struct {
				ChatID string `json:"chat_id"`
			} `json:"turn_key"`
		} `json:"turn"`
	}
	_ = json.Unmarshal(in.Payload, &body)
	if body.Chat.ChatID != "" {
		return body.Chat.ChatID
	}
	return body.Turn.TurnKey.ChatID
}

// Text extracts the user text of a create_and_generate_turn message.
func (in Inbound) Text() string {
	var body struct {
		Turn struct {
			Candidates []struct {
				RawContent string `json:"raw_content"`
			} `json:"candidates"`
		} `json:"turn"`
	}
	_ = json.Unmarshal(in.Payload, &body)
	if len(body.Turn.Candidates) == 0 {
		return ""
	}
	return body.Turn.Candidates[0].RawContent
}

// Responder returns the raw frames the stub writes back for one inbound
// message, in order.
type Responder func(in Inbound) [][]byte

// NeoServer is a stub neo WebSocket endpoint backed by httptest.
type NeoServer struct {
	*httptest.Server

	// URL is the ws:// address clients should dial.
	URL string

	// FrameDelay is slept before each scripted frame is written.
	FrameDelay time.Duration

	// OnConnect frames are written as soon as a client connects.
	OnConnect [][]byte

	responder Responder
	upgrader  websocket.Upgrader

	mu          sync.Mutex
	received    []Inbound
	headers     []http.Header
	connections int
}

// NewNeoServer starts a stub server answering with responder. A nil
// responder never answers.
func NewNeoServer(responder Responder) *NeoServer {
	s := &NeoServer{responder: responder}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	s.URL = "ws" + strings.TrimPrefix(s.Server.URL, "http")
	return s
}

// Received returns a copy of every message received so far.
func (s *NeoServer) Received() []Inbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Inbound, len(s.received))
	copy(out, s.received)
	return out
}

// Headers returns the handshake headers of every connection.
func (s *NeoServer) Headers() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]http.Header, len(s.headers))
	copy(out, s.headers)
	return out
}

// Connections is the number of accepted WebSocket connections.
func (s *NeoServer) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections
}

func (s *NeoServer) handle(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	s.mu.Lock()
	s.headers = append(s.headers, r.Header.Clone())
	s.connections++
	s.mu.Unlock()

	for _, frame := range s.OnConnect {
		if err := s.write(ws, frame); err != nil {
			return
		}
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var env struct {
			Command string          `json:"command"`
			Payload json.RawMessage `json:"payload"`
		}
		_ = json.Unmarshal(data, &env)
		in := Inbound{Command: env.Command, Payload: env.Payload, Raw: data}

		s.mu.Lock()
		s.received = append(s.received, in)
		s.mu.Unlock()

		if s.responder == nil {
			continue
		}
		for _, frame := range s.responder(in) {
			if err := s.write(ws, frame); err != nil {
				return
			}
		}
	}
}

func (s *NeoServer) write(ws *websocket.Conn, frame []byte) error {
	if s.FrameDelay > 0 {
		time.Sleep(s.FrameDelay)
	}
	return ws.WriteMessage(websocket.TextMessage, frame)
}

// Character answers create_chat with a matching acknowledgement and every
// turn with an echo of the human turn, a partial and then a final reply.
func Character(reply string) Responder {
	return func(in Inbound) [][]byte {
		switch in.Command {
		case "create_chat":
			return [][]byte{ChatCreatedFrame(in.ChatID())}
		case "create_and_generate_turn":
			chatID := in.ChatID()
			partial := reply[:len(reply)/2]
			return [][]byte{
				TurnFrame(chatID, "3", in.Text(), true),
				TurnFrame(chatID, "char-1", partial, false),
				TurnFrame(chatID, "char-1", reply, true),
			}
		default:
			return nil
		}
	}
}

// ChatCreatedFrame is a chat creation acknowledgement.
func ChatCreatedFrame(chatID string) []byte {
	return mustJSON(map[string]any{
		"command": "create_chat_response",
		"chat": map[string]any{
			"chat_id":    chatID,
			"creator_id": "1",
		},
	})
}

// TurnFrame is a generation fragment authored by authorID.
func TurnFrame(chatID, authorID, text string, final bool) []byte {
	return mustJSON(map[string]any{
		"command": "update_turn",
		"turn": map[string]any{
			"turn_key": map[string]any{"chat_id": chatID},
			"author":   map[string]any{"author_id": authorID},
			"candidates": []map[string]any{
				{"raw_content": text, "is_final": final},
			},
		},
	})
}

// ErrorFrame is a neo_error frame with a comment.
func ErrorFrame(comment string) []byte {
	return mustJSON(map[string]any{
		"command": "neo_error",
		"comment": comment,
	})
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
