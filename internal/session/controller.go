package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/zhouzirui/qwen-chat/backend/internal/model/chat"
	"github.com/zhouzirui/qwen-chat/backend/internal/store"
	"github.com/zhouzirui/qwen-chat/backend/internal/visitor"
)

// DefaultFailureMessage is shown when a send fails.
const DefaultFailureMessage = "Није успело слање поруке. Молимо покушајте поново."

const (
	defaultCompletionTimeout = 60 * time.Second
	touchTimeout             = 10 * time.Second
)

// Completer obtains the assistant reply for a history.
type Completer interface {
	Complete(ctx context.Context, turns []chat.Turn, conversationID string) (chat.Completion, error)
}

// Controller owns the session state. All mutations go through Reduce; at
// most one send runs at a time and extra sends are dropped, not queued.
type Controller struct {
	visitor        visitor.Context
	store          store.ConversationStore
	completer      Completer
	timeout        time.Duration
	failureMessage string
	observer       func(State)

	mu    sync.Mutex
	state State
	// epoch changes on Clear so a send started earlier cannot write into
	// the fresh session.
	epoch uint64

	tasks sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver registers fn to receive a snapshot after every state change.
func WithObserver(fn func(State)) Option {
	return func(c *Controller) { c.observer = fn }
}

// WithTimeout bounds the completion leg of a send.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithFailureMessage overrides the user-facing failure text.
func WithFailureMessage(msg string) Option {
	return func(c *Controller) {
		if msg != "" {
			c.failureMessage = msg
		}
	}
}

// NewController builds a controller for the given visitor.
func NewController(v visitor.Context, s store.ConversationStore, completer Completer, opts ...Option) *Controller {
	c := &Controller{
		visitor:        v,
		store:          s,
		completer:      completer,
		timeout:        defaultCompletionTimeout,
		failureMessage: DefaultFailureMessage,
		state:          State{Messages: []chat.Message{}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Visitor returns the identity the controller was built with.
func (c *Controller) Visitor() visitor.Context {
	return c.visitor
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Resume loads the visitor's latest conversation, if any. No conversation is
// created here; that waits for the first send.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	conversation, err := c.store.FindLatestConversation(ctx, c.visitor.ID)
	if err != nil {
		log.Printf("[session] visitor=%s failed to load conversation: %v", c.visitor.ID, err)
		return err
	}
	if conversation == nil {
		return nil
	}

	messages, err := c.store.LoadMessages(ctx, conversation.ID)
	if err != nil {
		log.Printf("[session] conversation=%s failed to load messages: %v", conversation.ID, err)
		c.apply(epoch, Resumed{ConversationID: conversation.ID})
		return err
	}

	c.apply(epoch, Resumed{ConversationID: conversation.ID, Messages: messages})
	log.Printf("[session] visitor=%s resumed conversation=%s with %d messages", c.visitor.ID, conversation.ID, len(messages))
	return nil
}

// Send runs the send pipeline for content. Blank content, or a send while
// another is in flight, is dropped without any state change and returns nil.
// A pipeline failure is recorded in the state and also returned.
func (c *Controller) Send(ctx context.Context, content string) error {
	c.mu.Lock()
	if strings.TrimSpace(content) == "" || c.state.IsLoading() {
		c.mu.Unlock()
		return nil
	}
	c.state = Reduce(c.state, SendStarted{})
	epoch := c.epoch
	history := cloneMessages(c.state.Messages)
	conversationID := c.state.ConversationID
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snapshot)

	err := c.send(ctx, epoch, conversationID, history, content)
	if err != nil {
		log.Printf("[session] visitor=%s send failed: %v", c.visitor.ID, err)
		c.apply(epoch, SendFailed{Reason: c.failureMessage})
	}
	c.finish(epoch)
	return err
}

func (c *Controller) send(ctx context.Context, epoch uint64, conversationID string, history []chat.Message, content string) error {
	if conversationID == "" {
		conversation, err := c.store.CreateConversation(ctx, c.visitor.ID)
		if err != nil {
			return err
		}
		conversationID = conversation.ID
		c.apply(epoch, ConversationCreated{ConversationID: conversationID})
	}

	userMessage, err := c.store.AppendMessage(ctx, conversationID, chat.RoleUser, content)
	if err != nil {
		return err
	}
	// Shown before the reply arrives and kept even if the reply leg fails.
	c.apply(epoch, MessageAppended{Message: userMessage})

	c.touch(conversationID)

	turns := append(chat.Turns(history), chat.Turn{Role: chat.RoleUser, Content: content})

	completeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	completion, err := c.completer.Complete(completeCtx, turns, conversationID)
	cancel()
	if err != nil {
		return err
	}
	if completion.Simulated {
		log.Printf("[session] conversation=%s received simulated reply", conversationID)
	}

	assistantMessage, err := c.store.AppendMessage(ctx, conversationID, chat.RoleAssistant, completion.Message)
	if err != nil {
		return fmt.Errorf("failed to persist assistant reply: %w", err)
	}
	c.apply(epoch, MessageAppended{Message: assistantMessage})
	return nil
}

// touch bumps the conversation in the background. Failures are logged only.
func (c *Controller) touch(conversationID string) {
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()

		ctx, cancel := context.WithTimeout(context.Background(), touchTimeout)
		defer cancel()

		if err := c.store.TouchConversation(ctx, conversationID); err != nil {
			log.Printf("[session] conversation=%s touch failed: %v", conversationID, err)
		}
	}()
}

// Clear forgets the conversation for this session. Persisted rows are kept,
// so a later Resume finds the old conversation again.
func (c *Controller) Clear() {
	c.mu.Lock()
	c.epoch++
	c.state = Reduce(c.state, Cleared{})
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snapshot)
}

// Wait blocks until background conversation touches have finished.
func (c *Controller) Wait() {
	c.tasks.Wait()
}

// apply reduces e into the state unless the session was cleared since epoch.
func (c *Controller) apply(epoch uint64, e Event) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.state = Reduce(c.state, e)
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snapshot)
}

// finish always leaves PhaseSending, even for a send from a cleared epoch.
func (c *Controller) finish(epoch uint64) {
	c.mu.Lock()
	if epoch != c.epoch {
		// The cleared session has no error to report for this send.
		c.state.Err = ""
	}
	c.state = Reduce(c.state, SendFinished{})
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snapshot)
}

func (c *Controller) snapshotLocked() State {
	s := c.state
	s.Messages = cloneMessages(c.state.Messages)
	return s
}

func (c *Controller) notify(s State) {
	if c.observer != nil {
		c.observer(s)
	}
}
