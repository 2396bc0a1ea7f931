package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/qwen-chat/backend/internal/model/chat"
)

var (
	errVisitorRequired      = errors.New("visitor id is required")
	errConversationNotFound = errors.New("conversation not found")
)

// MemoryStore keeps conversations in process memory. Useful for tests and
// single-process demos.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]chat.Conversation
	order         []string
	messages      map[string][]chat.Message
	now           func() time.Time
}

// NewMemoryStore bootstraps an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]chat.Conversation),
		messages:      make(map[string][]chat.Message),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) FindLatestConversation(_ context.Context, visitorID string) (*chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// order is creation order, so the last match is the newest.
	for i := len(s.order) - 1; i >= 0; i-- {
		conversation := s.conversations[s.order[i]]
		if conversation.VisitorID == visitorID {
			return &conversation, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) LoadMessages(_ context.Context, conversationID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := s.messages[conversationID]
	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

func (s *MemoryStore) CreateConversation(_ context.Context, visitorID string) (chat.Conversation, error) {
	if visitorID == "" {
		return chat.Conversation{}, persistenceErr("create conversation", errVisitorRequired)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	conversation := chat.Conversation{
		ID:        uuid.NewString(),
		VisitorID: visitorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[conversation.ID] = conversation
	s.order = append(s.order, conversation.ID)
	s.messages[conversation.ID] = make([]chat.Message, 0, 16)
	return conversation, nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, conversationID string, role chat.Role, content string) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return chat.Message{}, persistenceErr("append message", errConversationNotFound)
	}

	message := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      s.now(),
	}
	s.messages[conversationID] = append(s.messages[conversationID], message)
	return message, nil
}

func (s *MemoryStore) TouchConversation(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversation, ok := s.conversations[conversationID]
	if !ok {
		return persistenceErr("touch conversation", errConversationNotFound)
	}
	if now := s.now(); now.After(conversation.UpdatedAt) {
		conversation.UpdatedAt = now
	}
	s.conversations[conversationID] = conversation
	return nil
}

// Conversation returns a stored conversation by id.
func (s *MemoryStore) Conversation(id string) (chat.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conversation, ok := s.conversations[id]
	return conversation, ok
}

var _ ConversationStore = (*MemoryStore)(nil)
