package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// ConversationRepository mirrors committed turns for inspection and audit.
// The in-memory conversation window remains the source of truth; repository
// failures degrade observability, never the conversation.
type ConversationRepository interface {
	// AddMessage appends a message to the transcript of the given session.
	AddMessage(ctx context.Context, sessionID string, message *schema.Message) error

	// LoadHistory retrieves the mirrored transcript for a session.
	LoadHistory(ctx context.Context, sessionID string) (*ConversationHistory, error)

	// ClearHistory removes the mirrored transcript for a session.
	ClearHistory(ctx context.Context, sessionID string) error

	// GetMessageCount returns the number of mirrored messages.
	GetMessageCount(ctx context.Context, sessionID string) (int, error)
}

// ConversationHistory represents a loaded transcript with metadata.
type ConversationHistory struct {
	SessionID string
	Messages  []*schema.Message
}
