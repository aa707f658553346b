package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

var (
	askToolName    = "ask"
	askDescription = "Send a message to the character and wait for its reply. Pass the returned session_id back to continue the same chat; omit it to start a new one."
)

// AskInput represents the input arguments for the ask tool.
type AskInput struct {
	Message   string `json:"message" jsonschema:"the message to send to the character"`
	SessionID string `json:"session_id,omitempty" jsonschema:"chat to continue; empty starts a new chat"`
}

// AskOutput represents the output of the ask tool.
type AskOutput struct {
	SessionID  string `json:"session_id"`
	Reply      string `json:"reply"`
	Final      bool   `json:"final"`
	NoResponse bool   `json:"no_response"`
	NewSession bool   `json:"new_session"`
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	logger := s.config.Logger

	message := strings.TrimSpace(input.Message)
	if message == "" {
		return errorResult("message is required"), AskOutput{}, nil
	}

	logger.Debug("MCP ask request",
		zap.String("session_id", input.SessionID),
		zap.Int("message_len", len(message)),
	)

	answer, err := s.config.Asker.Ask(ctx, message, input.SessionID)
	if err != nil {
		logger.Error("failed to ask character", zap.Error(err))
		return errorResult(fmt.Sprintf("Failed to ask character: %v", err)), AskOutput{}, nil
	}

	output := AskOutput{
		SessionID:  answer.SessionID,
		Reply:      answer.Text,
		Final:      answer.Final,
		NoResponse: answer.NoResponse,
		NewSession: answer.NewSession,
	}

	// Structured output is also returned as serialized JSON text for
	// clients that only read text content.
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal ask output", zap.Error(err))
		return errorResult(fmt.Sprintf("Failed to serialize reply: %v", err)), AskOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}
