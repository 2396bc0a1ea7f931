package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/zhouzirui/qwen-chat/backend/internal/model/chat"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	visitor_id TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS conversations_visitor_idx ON conversations (visitor_id, created_at);
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
	content TEXT NOT NULL CHECK (length(content) > 0),
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, created_at);
`

// SQLiteStore persists conversations in a local sqlite database. Timestamps
// are stored as unix nanoseconds.
type SQLiteStore struct {
	db *sqlx.DB
}

type conversationRow struct {
	ID        string `db:"id"`
	VisitorID string `db:"visitor_id"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

type messageRow struct {
	ID             string `db:"id"`
	ConversationID string `db:"conversation_id"`
	Role           string `db:"role"`
	Content        string `db:"content"`
	CreatedAt      int64  `db:"created_at"`
}

// NewSQLiteStore opens (or creates) the database file and applies the schema.
func NewSQLiteStore(file string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite", file)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) FindLatestConversation(ctx context.Context, visitorID string) (*chat.Conversation, error) {
	var row conversationRow
	err := s.db.GetContext(ctx, &row,
		"SELECT id, visitor_id, created_at, updated_at FROM conversations WHERE visitor_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1",
		visitorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceErr("find latest conversation", err)
	}

	conversation := row.toModel()
	return &conversation, nil
}

func (s *SQLiteStore) LoadMessages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	var rows []messageRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT id, conversation_id, role, content, created_at FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, rowid ASC",
		conversationID)
	if err != nil {
		return nil, persistenceErr("load messages", err)
	}

	messages := make([]chat.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, row.toModel())
	}
	return messages, nil
}

func (s *SQLiteStore) CreateConversation(ctx context.Context, visitorID string) (chat.Conversation, error) {
	if visitorID == "" {
		return chat.Conversation{}, persistenceErr("create conversation", errVisitorRequired)
	}

	now := time.Now().UTC().UnixNano()
	row := conversationRow{ID: uuid.NewString(), VisitorID: visitorID, CreatedAt: now, UpdatedAt: now}
	_, err := s.db.NamedExecContext(ctx,
		"INSERT INTO conversations (id, visitor_id, created_at, updated_at) VALUES (:id, :visitor_id, :created_at, :updated_at)",
		row)
	if err != nil {
		return chat.Conversation{}, persistenceErr("create conversation", err)
	}
	return row.toModel(), nil
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, conversationID string, role chat.Role, content string) (chat.Message, error) {
	row := messageRow{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           string(role),
		Content:        content,
		CreatedAt:      time.Now().UTC().UnixNano(),
	}
	_, err := s.db.NamedExecContext(ctx,
		"INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (:id, :conversation_id, :role, :content, :created_at)",
		row)
	if err != nil {
		return chat.Message{}, persistenceErr("append message", err)
	}
	return row.toModel(), nil
}

func (s *SQLiteStore) TouchConversation(ctx context.Context, conversationID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE conversations SET updated_at = MAX(updated_at, ?) WHERE id = ?",
		time.Now().UTC().UnixNano(), conversationID)
	if err != nil {
		return persistenceErr("touch conversation", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return persistenceErr("touch conversation", errConversationNotFound)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (r conversationRow) toModel() chat.Conversation {
	return chat.Conversation{
		ID:        r.ID,
		VisitorID: r.VisitorID,
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
		UpdatedAt: time.Unix(0, r.UpdatedAt).UTC(),
	}
}

func (r messageRow) toModel() chat.Message {
	return chat.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		Role:           chat.Role(r.Role),
		Content:        r.Content,
		CreatedAt:      time.Unix(0, r.CreatedAt).UTC(),
	}
}

var _ ConversationStore = (*SQLiteStore)(nil)
