package channels

import (
	"context"
	"log/slog"

	"riseup-backend/internal/chatbot"
	"riseup-backend/internal/store"
)

// linkFor turns a site route into an absolute URL. It returns "" when the
// platform has no site to link to.
func linkFor(baseURL, route string) string {
	if baseURL == "" || route == "" {
		return ""
	}
	return baseURL + route
}

// routeOf reports where resp navigates when it was reached through actionKey.
func routeOf(resolver *chatbot.Resolver, resp chatbot.Response, actionKey string) string {
	if resp.Kind != chatbot.Action || actionKey == "" {
		return ""
	}
	route, _ := resolver.RouteFor(actionKey)
	return route
}

func record(ctx context.Context, transcripts store.Transcript, sid, said string, resp chatbot.Response) {
	if transcripts == nil {
		return
	}
	if err := transcripts.Append(ctx, sid, store.UserMessage(sid, said), store.BotMessage(sid, resp)); err != nil {
		slog.ErrorContext(ctx, "failed to record exchange", "session_id", sid, "error", err)
	}
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for size < len(items) {
		items, out = items[size:], append(out, items[:size:size])
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
