package main

import (
	"context"
	"log/slog"
	"strconv"

	"riseup-backend/internal/chatbot"
	"riseup-backend/internal/store"
)

const clearCommand = "/clear"

// turn is one answered input.
type turn struct {
	Said     string
	Response chatbot.Response
	Route    string
}

// conversation is the terminal widget's state: the persisted transcript and
// the menu currently on screen.
type conversation struct {
	resolver    *chatbot.Resolver
	transcripts store.Transcript
	sessionID   string
	menu        []chatbot.Option
}

func newConversation(resolver *chatbot.Resolver, transcripts store.Transcript, sessionID string) *conversation {
	return &conversation{resolver: resolver, transcripts: transcripts, sessionID: sessionID}
}

// Resume loads the saved transcript, or starts one with the greeting.
func (c *conversation) Resume(ctx context.Context) ([]store.Message, error) {
	msgs, err := c.transcripts.List(ctx, c.sessionID)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		greeting := store.BotMessage(c.sessionID, c.resolver.ResolveAction(chatbot.Greeting.String()))
		if err := c.transcripts.Append(ctx, c.sessionID, greeting); err != nil {
			return nil, err
		}
		msgs = []store.Message{greeting}
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].FromBot {
			c.menu = msgs[i].Options
			break
		}
	}
	return msgs, nil
}

// Handle answers a line: an option number from the current menu picks that
// option, /clear starts over, anything else is free text.
func (c *conversation) Handle(ctx context.Context, line string) (turn, error) {
	if line == clearCommand {
		if err := c.transcripts.Clear(ctx, c.sessionID); err != nil {
			return turn{}, err
		}
		msgs, err := c.Resume(ctx)
		if err != nil {
			return turn{}, err
		}
		return turn{Said: line, Response: chatbot.Response{Text: msgs[0].Text, Kind: msgs[0].Kind, Options: msgs[0].Options}}, nil
	}

	var t turn
	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(c.menu) {
		picked := c.menu[n-1]
		key := picked.Action.String()
		t = turn{Said: picked.Label, Response: c.resolver.ResolveAction(key)}
		if t.Response.Kind == chatbot.Action {
			t.Route, _ = c.resolver.RouteFor(key)
		}
	} else {
		t = turn{Said: line, Response: c.resolver.ResolveFreeText(line)}
	}

	if err := c.transcripts.Append(ctx, c.sessionID,
		store.UserMessage(c.sessionID, t.Said),
		store.BotMessage(c.sessionID, t.Response),
	); err != nil {
		slog.Warn("failed to save transcript", "error", err)
	}
	c.menu = t.Response.Options
	return t, nil
}
