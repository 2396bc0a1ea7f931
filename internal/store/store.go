// Package store persists conversations and their messages.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhouzirui/qwen-chat/backend/internal/model/chat"
)

// ErrPersistence marks a rejected read or write against the backing store.
var ErrPersistence = errors.New("persistence error")

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverSupabase = "supabase"
)

// ConversationStore is the typed accessor over the conversations and
// messages tables. Every method is a round-trip that may fail with an error
// wrapping ErrPersistence.
type ConversationStore interface {
	// FindLatestConversation returns the most recently created conversation
	// for the visitor, or nil when the visitor has none.
	FindLatestConversation(ctx context.Context, visitorID string) (*chat.Conversation, error)

	// LoadMessages returns the conversation's messages in ascending creation order.
	LoadMessages(ctx context.Context, conversationID string) ([]chat.Message, error)

	CreateConversation(ctx context.Context, visitorID string) (chat.Conversation, error)

	// AppendMessage inserts a message and returns it with the id and
	// timestamp assigned by the store.
	AppendMessage(ctx context.Context, conversationID string, role chat.Role, content string) (chat.Message, error)

	// TouchConversation bumps updated_at to the current time.
	TouchConversation(ctx context.Context, conversationID string) error
}

func persistenceErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}
