package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"riseup-backend/internal/chatbot"
	"riseup-backend/internal/logging"
	"riseup-backend/internal/mcpserver"
	"riseup-backend/internal/store"
)

func main() {
	var (
		sessionID = flag.String("session", "local", "transcript to resume")
		dir       = flag.String("dir", defaultDir(), "directory holding transcripts")
		serveMCP  = flag.Bool("mcp", false, "serve the chatbot tools over MCP stdio instead of chatting")
	)
	flag.Parse()

	logging.Preinit()
	resolver := chatbot.New()

	if *serveMCP {
		if err := mcpserver.ServeStdio(resolver); err != nil {
			slog.Error("mcp server stopped", "error", err)
			os.Exit(1)
		}
		return
	}

	transcripts, err := store.NewFileStore(*dir, 0)
	if err != nil {
		slog.Error("failed to open transcripts", "error", err)
		os.Exit(1)
	}

	if err := chat(context.Background(), newConversation(resolver, transcripts, *sessionID), *dir); err != nil {
		slog.Error("chat failed", "error", err)
		os.Exit(1)
	}
}

func defaultDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".riseup-chat")
	}
	return ".riseup-chat"
}

func chat(ctx context.Context, c *conversation, dir string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          promptStyle.Render("you › "),
		HistoryFile:     filepath.Join(dir, "history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "bye",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	out := rl.Stdout()
	history, err := c.Resume(ctx)
	if err != nil {
		return err
	}
	for _, msg := range history {
		fmt.Fprintln(out, renderMessage(msg))
	}

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}

		turn, err := c.Handle(ctx, line)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, renderTurn(turn))
	}
}
