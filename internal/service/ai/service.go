package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/qwen-chat/backend/internal/analysis/reply"
	"github.com/zhouzirui/qwen-chat/backend/internal/model/chat"
)

const defaultUpstreamTimeout = 30 * time.Second

var (
	// ErrInvalidRequest marks a malformed completion request. It is the only
	// error Complete returns.
	ErrInvalidRequest = errors.New("invalid completion request")
	// ErrUpstreamUnavailable marks an unreachable or failing provider. It is
	// absorbed into a simulated reply and only ever logged.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// Service forwards conversation history to the upstream model and degrades
// to simulated replies when the upstream is missing or failing.
type Service struct {
	chain   compose.Runnable[[]*schema.Message, *schema.Message]
	timeout time.Duration
}

// NewService compiles chatModel into a chain. A nil chatModel yields a
// service that only produces simulated replies.
func NewService(ctx context.Context, chatModel model.BaseChatModel, timeout time.Duration) (*Service, error) {
	if timeout <= 0 {
		timeout = defaultUpstreamTimeout
	}
	svc := &Service{timeout: timeout}
	if chatModel == nil {
		return svc, nil
	}

	chain := compose.NewChain[[]*schema.Message, *schema.Message]()
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	svc.chain = runnable
	return svc, nil
}

// UpstreamConfigured reports whether a live model is wired in.
func (s *Service) UpstreamConfigured() bool {
	return s.chain != nil
}

// Complete returns a reply for the given history. Upstream failures are
// never returned; they fall back to a simulated reply.
func (s *Service) Complete(ctx context.Context, turns []chat.Turn) (chat.Completion, error) {
	if err := validateTurns(turns); err != nil {
		return chat.Completion{}, err
	}

	if s.chain == nil {
		return simulated(turns), nil
	}

	upstreamCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	response, err := s.chain.Invoke(upstreamCtx, toSchemaMessages(turns))
	if err != nil {
		log.Printf("[ai] falling back to simulated reply: %v", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err))
		return simulated(turns), nil
	}

	if response == nil || strings.TrimSpace(response.Content) == "" {
		return chat.Completion{Message: reply.ApologyText}, nil
	}

	log.Printf("[ai] generated response, turns=%d, length=%d", len(turns), len(response.Content))
	return chat.Completion{Message: response.Content}, nil
}

func validateTurns(turns []chat.Turn) error {
	if len(turns) == 0 {
		return fmt.Errorf("%w: messages array is required", ErrInvalidRequest)
	}
	for i, turn := range turns {
		if !turn.Role.Valid() {
			return fmt.Errorf("%w: message %d has unsupported role %q", ErrInvalidRequest, i, turn.Role)
		}
	}
	return nil
}

func simulated(turns []chat.Turn) chat.Completion {
	return chat.Completion{Message: reply.Simulate(latestUserContent(turns)), Simulated: true}
}

// latestUserContent prefers the newest user turn and falls back to the last turn.
func latestUserContent(turns []chat.Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == chat.RoleUser {
			return turns[i].Content
		}
	}
	return turns[len(turns)-1].Content
}

func toSchemaMessages(turns []chat.Turn) []*schema.Message {
	messages := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		case chat.RoleSystem:
			messages = append(messages, schema.SystemMessage(turn.Content))
		default:
			messages = append(messages, schema.UserMessage(turn.Content))
		}
	}
	return messages
}
