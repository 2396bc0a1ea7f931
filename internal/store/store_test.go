package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/zhouzirui/qwen-chat/backend/internal/model/chat"
	"github.com/zhouzirui/qwen-chat/backend/internal/store"
)

func drivers(t *testing.T) map[string]store.ConversationStore {
	t.Helper()

	sqlite, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore err: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]store.ConversationStore{
		"memory": store.NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestFindLatestConversationNoRows(t *testing.T) {
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			got, err := s.FindLatestConversation(context.Background(), "visitor_1_abcdefg")
			if err != nil {
				t.Fatalf("expected no error for zero matches, got %v", err)
			}
			if got != nil {
				t.Fatalf("expected nil conversation, got %+v", got)
			}
		})
	}
}

func TestFindLatestConversationReturnsNewest(t *testing.T) {
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := s.CreateConversation(ctx, "alice"); err != nil {
				t.Fatalf("CreateConversation err: %v", err)
			}
			newest, err := s.CreateConversation(ctx, "alice")
			if err != nil {
				t.Fatalf("CreateConversation err: %v", err)
			}
			if _, err := s.CreateConversation(ctx, "bob"); err != nil {
				t.Fatalf("CreateConversation err: %v", err)
			}

			got, err := s.FindLatestConversation(ctx, "alice")
			if err != nil {
				t.Fatalf("FindLatestConversation err: %v", err)
			}
			if got == nil || got.ID != newest.ID {
				t.Fatalf("expected conversation %s, got %+v", newest.ID, got)
			}
			if got.VisitorID != "alice" {
				t.Fatalf("unexpected visitor id %s", got.VisitorID)
			}
		})
	}
}

func TestAppendAndLoadMessagesInOrder(t *testing.T) {
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			conversation, err := s.CreateConversation(ctx, "alice")
			if err != nil {
				t.Fatalf("CreateConversation err: %v", err)
			}

			contents := []string{"first", "second", "third", "fourth"}
			roles := []chat.Role{chat.RoleUser, chat.RoleAssistant, chat.RoleUser, chat.RoleUser}
			for i, content := range contents {
				msg, err := s.AppendMessage(ctx, conversation.ID, roles[i], content)
				if err != nil {
					t.Fatalf("AppendMessage err: %v", err)
				}
				if msg.ID == "" || msg.CreatedAt.IsZero() {
					t.Fatalf("expected server assigned fields, got %+v", msg)
				}
			}

			messages, err := s.LoadMessages(ctx, conversation.ID)
			if err != nil {
				t.Fatalf("LoadMessages err: %v", err)
			}
			if len(messages) != len(contents) {
				t.Fatalf("expected %d messages, got %d", len(contents), len(messages))
			}
			for i, msg := range messages {
				if msg.Content != contents[i] || msg.Role != roles[i] {
					t.Fatalf("message %d: got %s/%s", i, msg.Role, msg.Content)
				}
				if i > 0 && msg.CreatedAt.Before(messages[i-1].CreatedAt) {
					t.Fatalf("message %d out of order", i)
				}
			}
		})
	}
}

func TestAppendMessageUnknownConversation(t *testing.T) {
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.AppendMessage(context.Background(), "missing", chat.RoleUser, "hello")
			if !errors.Is(err, store.ErrPersistence) {
				t.Fatalf("expected ErrPersistence, got %v", err)
			}
		})
	}
}

func TestCreateConversationRequiresVisitor(t *testing.T) {
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.CreateConversation(context.Background(), "")
			if !errors.Is(err, store.ErrPersistence) {
				t.Fatalf("expected ErrPersistence, got %v", err)
			}
		})
	}
}

func TestTouchConversation(t *testing.T) {
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			conversation, err := s.CreateConversation(ctx, "alice")
			if err != nil {
				t.Fatalf("CreateConversation err: %v", err)
			}
			if err := s.TouchConversation(ctx, conversation.ID); err != nil {
				t.Fatalf("TouchConversation err: %v", err)
			}
			got, err := s.FindLatestConversation(ctx, "alice")
			if err != nil {
				t.Fatalf("FindLatestConversation err: %v", err)
			}
			if got.UpdatedAt.Before(conversation.UpdatedAt) {
				t.Fatalf("updated_at moved backwards: %v < %v", got.UpdatedAt, conversation.UpdatedAt)
			}
			if err := s.TouchConversation(ctx, "missing"); !errors.Is(err, store.ErrPersistence) {
				t.Fatalf("expected ErrPersistence for missing conversation, got %v", err)
			}
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, _, err := store.Open(store.Config{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpenMemoryDefault(t *testing.T) {
	s, closer, err := store.Open(store.Config{})
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	defer closer.Close()
	if _, ok := s.(*store.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", s)
	}
}
