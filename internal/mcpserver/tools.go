package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"riseup-backend/internal/chatbot"
)

const (
	Name    = "riseup-chatbot"
	Version = "1.0.0"
)

type tools struct {
	resolver *chatbot.Resolver
}

// New registers the chatbot operations as MCP tools.
func New(resolver *chatbot.Resolver) *server.MCPServer {
	s := server.NewMCPServer(Name, Version, server.WithToolCapabilities(true))
	t := &tools{resolver: resolver}

	s.AddTool(mcp.NewTool("resolve_free_text",
		mcp.WithDescription("Answer a visitor's typed message with the canned response the website chatbot would show."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The visitor's message")),
	), t.resolveFreeText)

	s.AddTool(mcp.NewTool("resolve_action",
		mcp.WithDescription("Answer a menu option picked by the visitor, identified by its action key."),
		mcp.WithString("action_key", mcp.Required(), mcp.Description("Action key of the chosen option, e.g. services or portfolio")),
	), t.resolveAction)

	s.AddTool(mcp.NewTool("route_for",
		mcp.WithDescription("Site path an action key navigates to, or null when it does not navigate."),
		mcp.WithString("action_key", mcp.Required(), mcp.Description("Action key to look up")),
	), t.routeFor)

	return s
}

// NewHTTPHandler serves the tools over streamable HTTP.
func NewHTTPHandler(resolver *chatbot.Resolver) *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(New(resolver))
}

// ServeStdio serves the tools on stdin/stdout until the peer disconnects.
func ServeStdio(resolver *chatbot.Resolver) error {
	return server.ServeStdio(New(resolver))
}

func (t *tools) resolveFreeText(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(t.resolver.ResolveFreeText(text))
}

func (t *tools) resolveAction(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("action_key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(t.resolver.ResolveAction(key))
}

func (t *tools) routeFor(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("action_key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var out struct {
		Route *string `json:"route"`
	}
	if route, ok := t.resolver.RouteFor(key); ok {
		out.Route = &route
	}
	return jsonResult(out)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}
