package chat

import "time"

// Conversation is a persisted thread of messages owned by one visitor.
type Conversation struct {
	ID        string    `json:"id" db:"id"`
	VisitorID string    `json:"visitor_id" db:"visitor_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
