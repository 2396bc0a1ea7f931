package main

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/zhouzirui/qwen-chat/backend/internal/analysis/reply"
	"github.com/zhouzirui/qwen-chat/backend/internal/model/chat"
	"github.com/zhouzirui/qwen-chat/backend/internal/session"
	"github.com/zhouzirui/qwen-chat/backend/internal/store"
	"github.com/zhouzirui/qwen-chat/backend/internal/visitor"
)

type simulatedProxy struct{}

func (simulatedProxy) Complete(_ context.Context, turns []chat.Turn, _ string) (chat.Completion, error) {
	return chat.Completion{Message: reply.Simulate(turns[len(turns)-1].Content), Simulated: true}, nil
}

func TestRunCommands(t *testing.T) {
	var out bytes.Buffer
	printer := &transcript{out: &out}
	controller := session.NewController(visitor.Context{ID: "visitor_1_abcdefg"}, store.NewMemoryStore(), simulatedProxy{},
		session.WithObserver(printer.render))

	input := "Здраво\n\n/clear\nhelp\n/quit\nignored\n"
	run(context.Background(), controller, bufio.NewScanner(strings.NewReader(input)))
	controller.Wait()

	got := out.String()
	for _, want := range []string{"you: Здраво", "qwen: " + reply.GreetingText, "you: help", "qwen: " + reply.HelpText} {
		if !strings.Contains(got, want) {
			t.Fatalf("transcript missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "ignored") {
		t.Fatalf("input after /quit must not be sent:\n%s", got)
	}

	state := controller.Snapshot()
	if len(state.Messages) != 2 {
		t.Fatalf("expected cleared session with one exchange, got %d messages", len(state.Messages))
	}
}

func TestRunSendsLineUntrimmed(t *testing.T) {
	s := store.NewMemoryStore()
	controller := session.NewController(visitor.Context{ID: "visitor_1_abcdefg"}, s, simulatedProxy{})

	run(context.Background(), controller, bufio.NewScanner(strings.NewReader("  Здраво  \n  /quit  \n")))
	controller.Wait()

	state := controller.Snapshot()
	if len(state.Messages) != 2 {
		t.Fatalf("expected one exchange, got %+v", state.Messages)
	}
	if got := state.Messages[0].Content; got != "  Здраво  " {
		t.Fatalf("expected raw content, got %q", got)
	}

	persisted, _ := s.LoadMessages(context.Background(), state.ConversationID)
	if len(persisted) != 2 || persisted[0].Content != "  Здраво  " {
		t.Fatalf("expected raw content persisted, got %+v", persisted)
	}
}

func TestTranscriptPrintsErrorOnce(t *testing.T) {
	var out bytes.Buffer
	printer := &transcript{out: &out}

	failed := session.State{Err: "failed", Phase: session.PhaseError}
	printer.render(failed)
	printer.render(failed)

	if got := strings.Count(out.String(), "! failed"); got != 1 {
		t.Fatalf("expected error printed once, got %d:\n%s", got, out.String())
	}
}
