package simulator

import (
	"context"
	"errors"
	"fmt"

	"github.com/fsandov/botpress-simulator/pkg/botpress"
)

// Forwarder delivers a user message to a bot and returns its reply together
// with the conversation id the bot answered in.
type Forwarder interface {
	Send(ctx context.Context, message, userID, conversationID string) (reply string, newConversationID string, err error)
}

// EchoForwarder answers every message with itself. It stands in for Botpress
// when no webhook is configured.
type EchoForwarder struct{}

func (EchoForwarder) Send(_ context.Context, message, _ string, conversationID string) (string, string, error) {
	return "Echo: " + message, conversationID, nil
}

// replyForError renders a forwarding failure as the text sent back to the
// caller in place of a bot reply.
func replyForError(err error) string {
	var (
		statusErr  *botpress.StatusError
		networkErr *botpress.NetworkError
		decodeErr  *botpress.DecodeError
	)
	switch {
	case errors.As(err, &statusErr):
		return fmt.Sprintf("Error: Botpress returned status code %d", statusErr.StatusCode)
	case errors.Is(err, botpress.ErrEmptyResponse):
		return "Error: Empty response from Botpress"
	case errors.As(err, &networkErr):
		return "Network error: " + networkErr.Error()
	case errors.As(err, &decodeErr):
		return "Invalid JSON response: " + decodeErr.Error()
	default:
		return "Unexpected error: " + err.Error()
	}
}
