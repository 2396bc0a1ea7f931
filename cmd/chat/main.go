package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/zhouzirui/qwen-chat/backend/internal/client"
	"github.com/zhouzirui/qwen-chat/backend/internal/config"
	"github.com/zhouzirui/qwen-chat/backend/internal/model/chat"
	"github.com/zhouzirui/qwen-chat/backend/internal/session"
	"github.com/zhouzirui/qwen-chat/backend/internal/store"
	"github.com/zhouzirui/qwen-chat/backend/internal/visitor"
)

const (
	commandClear = "/clear"
	commandQuit  = "/quit"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	storagePath := cfg.Client.StoragePath
	if storagePath == "" {
		storagePath, err = visitor.DefaultPath()
		if err != nil {
			log.Printf("warning: no local storage location: %v", err)
		}
	}
	var storage visitor.Storage
	if storagePath != "" {
		storage = visitor.NewFileStorage(storagePath)
	}
	identity := visitor.Resolve(storage)

	conversations, closer, err := store.Open(cfg.Store)
	if err != nil {
		log.Fatalf("failed to open %s store: %v", cfg.Store.Driver, err)
	}
	defer closer.Close()

	proxy := client.New(cfg.Client.APIURL, cfg.Client.Token, cfg.Client.Timeout)
	printer := &transcript{out: os.Stdout}

	controller := session.NewController(identity, conversations, proxy,
		session.WithObserver(printer.render),
		session.WithTimeout(cfg.Client.Timeout),
	)
	defer controller.Wait()

	if err := controller.Resume(ctx); err != nil {
		log.Printf("warning: could not restore previous conversation: %v", err)
	}

	fmt.Printf("Qwen chat (%s). Type %s to start over, %s to exit.\n", identity.ID, commandClear, commandQuit)
	run(ctx, controller, bufio.NewScanner(os.Stdin))
}

func run(ctx context.Context, controller *session.Controller, scanner *bufio.Scanner) {
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		if ctx.Err() != nil {
			return
		}

		line := scanner.Text()
		switch strings.TrimSpace(line) {
		case "":
			continue
		case commandQuit:
			return
		case commandClear:
			controller.Clear()
			fmt.Println("Conversation cleared.")
			continue
		}

		// The failure is already reflected in the session state.
		_ = controller.Send(ctx, line)
	}
}

// transcript prints messages as the session state grows.
type transcript struct {
	out     io.Writer
	printed int
	lastErr string
}

func (t *transcript) render(state session.State) {
	if len(state.Messages) < t.printed {
		t.printed = 0
	}
	for _, msg := range state.Messages[t.printed:] {
		speaker := "you"
		if msg.Role == chat.RoleAssistant {
			speaker = "qwen"
		}
		fmt.Fprintf(t.out, "%s: %s\n", speaker, msg.Content)
	}
	t.printed = len(state.Messages)

	if state.Err != "" && state.Err != t.lastErr {
		fmt.Fprintf(t.out, "! %s\n", state.Err)
	}
	t.lastErr = state.Err
}
