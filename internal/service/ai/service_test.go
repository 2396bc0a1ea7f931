package ai_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/qwen-chat/backend/internal/analysis/reply"
	"github.com/zhouzirui/qwen-chat/backend/internal/model/chat"
	"github.com/zhouzirui/qwen-chat/backend/internal/service/ai"
)

type fakeChatModel struct {
	content string
	err     error
	block   bool
	seen    []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.seen = input
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.content, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func newService(t *testing.T, m model.BaseChatModel, timeout time.Duration) *ai.Service {
	t.Helper()
	svc, err := ai.NewService(context.Background(), m, timeout)
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	return svc
}

func userTurn(content string) []chat.Turn {
	return []chat.Turn{{Role: chat.RoleUser, Content: content}}
}

func TestCompleteWithoutCredentialIsSimulated(t *testing.T) {
	svc := newService(t, nil, 0)

	got, err := svc.Complete(context.Background(), userTurn("Здраво"))
	if err != nil {
		t.Fatalf("Complete err: %v", err)
	}
	if !got.Simulated || got.Message != reply.GreetingText {
		t.Fatalf("unexpected completion %+v", got)
	}
	if svc.UpstreamConfigured() {
		t.Fatal("expected no upstream")
	}
}

func TestCompleteSimulatedUsesLatestUserTurn(t *testing.T) {
	svc := newService(t, nil, 0)
	turns := []chat.Turn{
		{Role: chat.RoleUser, Content: "Здраво"},
		{Role: chat.RoleAssistant, Content: reply.GreetingText},
		{Role: chat.RoleUser, Content: "Шта можеш?"},
	}

	got, err := svc.Complete(context.Background(), turns)
	if err != nil {
		t.Fatalf("Complete err: %v", err)
	}
	if got.Message != reply.CapabilityText {
		t.Fatalf("expected capability reply, got %q", got.Message)
	}
}

func TestCompleteRejectsInvalidInput(t *testing.T) {
	svc := newService(t, nil, 0)

	cases := map[string][]chat.Turn{
		"empty":   nil,
		"badRole": {{Role: "robot", Content: "beep"}},
	}
	for name, turns := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Complete(context.Background(), turns); !errors.Is(err, ai.ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestCompleteForwardsHistory(t *testing.T) {
	fake := &fakeChatModel{content: "Одлично!"}
	svc := newService(t, fake, time.Second)
	turns := []chat.Turn{
		{Role: chat.RoleUser, Content: "Здраво"},
		{Role: chat.RoleAssistant, Content: "Здраво!"},
		{Role: chat.RoleUser, Content: "Како си?"},
	}

	got, err := svc.Complete(context.Background(), turns)
	if err != nil {
		t.Fatalf("Complete err: %v", err)
	}
	if got.Simulated || got.Message != "Одлично!" {
		t.Fatalf("unexpected completion %+v", got)
	}
	if len(fake.seen) != 3 || fake.seen[1].Role != schema.Assistant || fake.seen[2].Content != "Како си?" {
		t.Fatalf("history not forwarded in order: %+v", fake.seen)
	}
}

func TestCompleteUpstreamFailureFallsBack(t *testing.T) {
	svc := newService(t, &fakeChatModel{err: errors.New("status 503")}, time.Second)

	got, err := svc.Complete(context.Background(), userTurn("help"))
	if err != nil {
		t.Fatalf("Complete err: %v", err)
	}
	if !got.Simulated || got.Message != reply.HelpText {
		t.Fatalf("unexpected completion %+v", got)
	}
}

func TestCompleteUpstreamTimeoutFallsBack(t *testing.T) {
	svc := newService(t, &fakeChatModel{block: true}, 20*time.Millisecond)

	got, err := svc.Complete(context.Background(), userTurn("погода"))
	if err != nil {
		t.Fatalf("Complete err: %v", err)
	}
	if !got.Simulated || got.Message != reply.GenericText {
		t.Fatalf("unexpected completion %+v", got)
	}
}

func TestCompleteEmptyUpstreamTextUsesApology(t *testing.T) {
	svc := newService(t, &fakeChatModel{content: "   "}, time.Second)

	got, err := svc.Complete(context.Background(), userTurn("hi"))
	if err != nil {
		t.Fatalf("Complete err: %v", err)
	}
	if got.Simulated || got.Message != reply.ApologyText {
		t.Fatalf("unexpected completion %+v", got)
	}
}

func TestCompleteAlwaysReturnsMessage(t *testing.T) {
	models := map[string]model.BaseChatModel{
		"none":    nil,
		"failing": &fakeChatModel{err: errors.New("boom")},
		"empty":   &fakeChatModel{},
		"ok":      &fakeChatModel{content: "ok"},
	}
	inputs := []string{"", "Здраво", "what do you do", "?"}

	for name, m := range models {
		svc := newService(t, m, time.Second)
		for _, input := range inputs {
			got, err := svc.Complete(context.Background(), userTurn(input))
			if err != nil {
				t.Fatalf("%s: Complete(%q) err: %v", name, input, err)
			}
			if got.Message == "" {
				t.Fatalf("%s: Complete(%q) returned empty message", name, input)
			}
		}
	}
}
