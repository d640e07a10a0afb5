package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"riseup-backend/internal/chatbot"
)

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("tool error: %v", err)
	}
	if len(res.Content) != 1 {
		t.Fatalf("got %d content items", len(res.Content))
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T", res.Content[0])
	}
	return text.Text, res.IsError
}

func TestResolveFreeTextTool(t *testing.T) {
	r := chatbot.New()
	tl := &tools{resolver: r}

	out, isErr := call(t, tl.resolveFreeText, map[string]any{"text": "Tell me about your services"})
	if isErr {
		t.Fatalf("unexpected tool error: %s", out)
	}
	var got chatbot.Response
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %s: %v", out, err)
	}
	if !got.Equal(r.ResolveAction("services")) {
		t.Fatalf("got %+v", got)
	}

	if _, isErr := call(t, tl.resolveFreeText, map[string]any{}); !isErr {
		t.Fatalf("missing text should be a tool error")
	}
}

func TestResolveActionTool(t *testing.T) {
	r := chatbot.New()
	tl := &tools{resolver: r}

	out, _ := call(t, tl.resolveAction, map[string]any{"action_key": "bogus"})
	var got chatbot.Response
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %s: %v", out, err)
	}
	if !got.Equal(r.Catalog().Fallback()) {
		t.Fatalf("unknown key should yield the fallback, got %+v", got)
	}

	out, _ = call(t, tl.resolveAction, map[string]any{"action_key": " services"})
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %s: %v", out, err)
	}
	if !got.Equal(r.Catalog().Fallback()) {
		t.Fatalf("padded key should not match, got %+v", got)
	}
}

func TestRouteForTool(t *testing.T) {
	tl := &tools{resolver: chatbot.New()}
	tests := map[string]string{
		"portfolio":  `{"route":"/projects"}`,
		"careers":    `{"route":"/careers"}`,
		"services":   `{"route":null}`,
		" portfolio": `{"route":null}`,
	}
	for key, want := range tests {
		if got, _ := call(t, tl.routeFor, map[string]any{"action_key": key}); got != want {
			t.Fatalf("route_for(%s) = %s, want %s", key, got, want)
		}
	}
}
