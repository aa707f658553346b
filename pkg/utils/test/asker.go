package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/neolink/pkg/client"
)

// AskCall records one Ask invocation.
type AskCall struct {
	Text      string
	SessionID string
}

// MockAsker is a test client.Asker that answers from a script.
type MockAsker struct {
	mu    sync.Mutex
	calls []AskCall

	// Reply is returned as the answer text.
	Reply string

	// NewSessionID is used when Ask is called without a session.
	NewSessionID string

	// Err fails every call.
	Err error

	// Block, when set, holds every call until it is closed.
	Block chan struct{}

	// Started receives once per call before it blocks.
	Started chan struct{}
}

// NewMockAsker creates a mock answering reply.
func NewMockAsker(reply string) *MockAsker {
	return &MockAsker{Reply: reply, NewSessionID: "new-session"}
}

// Ask implements client.Asker.
func (m *MockAsker) Ask(ctx context.Context, text, sessionID string) (*client.Answer, error) {
	m.mu.Lock()
	m.calls = append(m.calls, AskCall{Text: text, SessionID: sessionID})
	m.mu.Unlock()

	if m.Started != nil {
		m.Started <- struct{}{}
	}
	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}

	answer := &client.Answer{SessionID: sessionID, Text: m.Reply, Final: true}
	if sessionID == "" {
		answer.SessionID = m.NewSessionID
		answer.NewSession = true
	}
	if m.Reply == "" {
		answer.Text = client.NoResponseText
		answer.Final = false
		answer.NoResponse = true
	}
	return answer, nil
}

// Calls returns every recorded call.
func (m *MockAsker) Calls() []AskCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AskCall(nil), m.calls...)
}
