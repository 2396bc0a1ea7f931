package store

import (
	"context"
	"fmt"
	"time"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"github.com/zhouzirui/qwen-chat/backend/internal/model/chat"
)

const (
	conversationsTable = "conversations"
	messagesTable      = "messages"
)

// SupabaseConfig holds Supabase connection configuration.
type SupabaseConfig struct {
	URL    string
	APIKey string
}

// SupabaseStore implements ConversationStore on a Supabase project. Row level
// security on both tables is expected to be provisioned out of band.
type SupabaseStore struct {
	client *supabase.Client
}

// NewSupabaseStore creates a new Supabase-backed store.
func NewSupabaseStore(cfg SupabaseConfig) (*SupabaseStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &SupabaseStore{client: client}, nil
}

func (s *SupabaseStore) FindLatestConversation(ctx context.Context, visitorID string) (*chat.Conversation, error) {
	// maybeSingle semantics: an empty result is not an error.
	var conversations []chat.Conversation
	err := withContext(ctx, "find latest conversation", func() error {
		_, err := s.client.From(conversationsTable).
			Select("*", "", false).
			Eq("visitor_id", visitorID).
			Order("created_at", &postgrest.OrderOpts{Ascending: false}).
			Limit(1, "").
			ExecuteTo(&conversations)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(conversations) == 0 {
		return nil, nil
	}
	return &conversations[0], nil
}

func (s *SupabaseStore) LoadMessages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	var messages []chat.Message
	err := withContext(ctx, "load messages", func() error {
		_, err := s.client.From(messagesTable).
			Select("*", "", false).
			Eq("conversation_id", conversationID).
			Order("created_at", &postgrest.OrderOpts{Ascending: true}).
			ExecuteTo(&messages)
		return err
	})
	if err != nil {
		return nil, err
	}

	if messages == nil {
		messages = []chat.Message{}
	}
	return messages, nil
}

func (s *SupabaseStore) CreateConversation(ctx context.Context, visitorID string) (chat.Conversation, error) {
	if visitorID == "" {
		return chat.Conversation{}, persistenceErr("create conversation", errVisitorRequired)
	}
	var created []chat.Conversation
	err := withContext(ctx, "create conversation", func() error {
		_, err := s.client.From(conversationsTable).
			Insert(map[string]string{"visitor_id": visitorID}, false, "", "representation", "").
			ExecuteTo(&created)
		return err
	})
	if err != nil {
		return chat.Conversation{}, err
	}
	if len(created) == 0 {
		return chat.Conversation{}, persistenceErr("create conversation", fmt.Errorf("insert returned no rows"))
	}
	return created[0], nil
}

func (s *SupabaseStore) AppendMessage(ctx context.Context, conversationID string, role chat.Role, content string) (chat.Message, error) {
	row := map[string]string{
		"conversation_id": conversationID,
		"role":            string(role),
		"content":         content,
	}

	var inserted []chat.Message
	err := withContext(ctx, "append message", func() error {
		_, err := s.client.From(messagesTable).
			Insert(row, false, "", "representation", "").
			ExecuteTo(&inserted)
		return err
	})
	if err != nil {
		return chat.Message{}, err
	}
	if len(inserted) == 0 {
		return chat.Message{}, persistenceErr("append message", fmt.Errorf("insert returned no rows"))
	}
	return inserted[0], nil
}

func (s *SupabaseStore) TouchConversation(ctx context.Context, conversationID string) error {
	update := map[string]string{"updated_at": time.Now().UTC().Format(time.RFC3339Nano)}
	return withContext(ctx, "touch conversation", func() error {
		_, _, err := s.client.From(conversationsTable).
			Update(update, "minimal", "").
			Eq("id", conversationID).
			Execute()
		return err
	})
}

// withContext bounds call by ctx. supabase-go takes no context, so an
// abandoned request keeps running in the background until the server answers;
// call must only write to variables the caller ignores on error.
func withContext(ctx context.Context, op string, call func() error) error {
	if err := ctx.Err(); err != nil {
		return persistenceErr(op, err)
	}

	done := make(chan error, 1)
	go func() { done <- call() }()

	select {
	case err := <-done:
		if err != nil {
			return persistenceErr(op, err)
		}
		return nil
	case <-ctx.Done():
		return persistenceErr(op, ctx.Err())
	}
}

var _ ConversationStore = (*SupabaseStore)(nil)
