// Package session implements the chat session controller: the in-memory
// conversation state and the send pipeline that keeps it in step with the
// store and the completion proxy.
package session

import "github.com/zhouzirui/qwen-chat/backend/internal/model/chat"

// Phase is the controller's position in the send cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSending
	// PhaseError is Idle with a pending user-facing error; the next send or
	// clear leaves it.
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSending:
		return "sending"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// State is the session as presented to the UI.
type State struct {
	Messages       []chat.Message
	ConversationID string
	Phase          Phase
	Err            string
}

// IsLoading reports whether a send is in flight.
func (s State) IsLoading() bool {
	return s.Phase == PhaseSending
}

// Event is an input to Reduce.
type Event interface {
	event()
}

// Resumed replaces the session with a conversation loaded from the store.
type Resumed struct {
	ConversationID string
	Messages       []chat.Message
}

// SendStarted enters PhaseSending and clears any previous error.
type SendStarted struct{}

// ConversationCreated records the lazily created conversation.
type ConversationCreated struct {
	ConversationID string
}

// MessageAppended adds a persisted message to the end of the history.
type MessageAppended struct {
	Message chat.Message
}

// SendFailed records the user-facing failure of the current send.
type SendFailed struct {
	Reason string
}

// SendFinished ends the current send regardless of outcome.
type SendFinished struct{}

// Cleared forgets the conversation for this session only.
type Cleared struct{}

func (Resumed) event()             {}
func (SendStarted) event()         {}
func (ConversationCreated) event() {}
func (MessageAppended) event()     {}
func (SendFailed) event()          {}
func (SendFinished) event()        {}
func (Cleared) event()             {}

// Reduce returns the state that follows s after e. It never mutates s.
func Reduce(s State, e Event) State {
	switch e := e.(type) {
	case Resumed:
		s.ConversationID = e.ConversationID
		s.Messages = cloneMessages(e.Messages)
	case SendStarted:
		s.Phase = PhaseSending
		s.Err = ""
	case ConversationCreated:
		s.ConversationID = e.ConversationID
	case MessageAppended:
		messages := make([]chat.Message, len(s.Messages), len(s.Messages)+1)
		copy(messages, s.Messages)
		s.Messages = append(messages, e.Message)
	case SendFailed:
		s.Err = e.Reason
	case SendFinished:
		if s.Err != "" {
			s.Phase = PhaseError
		} else {
			s.Phase = PhaseIdle
		}
	case Cleared:
		s.Messages = []chat.Message{}
		s.ConversationID = ""
		s.Err = ""
		if s.Phase == PhaseError {
			s.Phase = PhaseIdle
		}
	}
	return s
}

func cloneMessages(messages []chat.Message) []chat.Message {
	cloned := make([]chat.Message, len(messages))
	copy(cloned, messages)
	return cloned
}
