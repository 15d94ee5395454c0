package chat

import (
	"context"
	"fmt"

	"github.com/jchatbot/jchat/internal/models"
)

// Request is the single operation the conversation transport supports.
type Request struct {
	Message   string                `json:"message"`
	UserID    string                `json:"userId"`
	SessionID string                `json:"sessionId"`
	History   []models.HistoryEntry `json:"history,omitempty"`
}

// Transport is the external collaborator that turns a request into a
// generated response. Implementations: the HTTP client against
// jchat-server, stubs in tests.
type Transport interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// TransportError carries the structured error payload a failing transport
// returns. Its message is what gets shown to the user.
type TransportError struct {
	Status  int
	Message string
	Details string
}

func (e *TransportError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}
