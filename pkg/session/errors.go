package session

import "fmt"

// CreateError is a neo_error received while creating a chat.
type CreateError struct {
	ChatID string
	Detail string
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("creating chat %s: %s", e.ChatID, e.Detail)
}

// TurnError is a neo_error received while waiting for a reply.
type TurnError struct {
	ChatID string
	Detail string
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("generating turn in chat %s: %s", e.ChatID, e.Detail)
}
