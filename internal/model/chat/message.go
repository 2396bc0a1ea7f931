package chat

import "time"

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether the role may appear in a proxy request.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// Message is one persisted turn of a conversation.
type Message struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	Role           Role      `json:"role" db:"role"`
	Content        string    `json:"content" db:"content"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Turn is the role/content pair exchanged with the completion proxy.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Turns maps persisted messages to proxy turns, preserving order.
func Turns(messages []Message) []Turn {
	turns := make([]Turn, 0, len(messages))
	for _, msg := range messages {
		turns = append(turns, Turn{Role: msg.Role, Content: msg.Content})
	}
	return turns
}

// Completion is the proxy's answer to one completion request.
type Completion struct {
	Message   string `json:"message"`
	Simulated bool   `json:"simulated,omitempty"`
}
