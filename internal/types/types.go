package types

import (
	"time"

	"riseup-backend/internal/chatbot"
)

type ChatRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message" validate:"required,max=1000"`
}

type ActionRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	ActionKey string `json:"actionKey" validate:"required,max=64"`
	// Label is the text of the option the user picked; it is what the
	// transcript shows as the user's message.
	Label string `json:"label,omitempty" validate:"max=200"`
}

type ChatResponse struct {
	SessionID string          `json:"sessionId"`
	Reply     string          `json:"reply"`
	Intent    *IntentResponse `json:"intent,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// IntentResponse tells the frontend how to present the reply: a menu of
// options, or a navigation to Route.
type IntentResponse struct {
	Type    string           `json:"type"`
	Options []chatbot.Option `json:"options,omitempty"`
	Route   string           `json:"route,omitempty"`
}

type TranscriptMessage struct {
	ID        string           `json:"id"`
	Text      string           `json:"text"`
	IsFromBot bool             `json:"isFromBot"`
	Kind      string           `json:"kind"`
	Options   []chatbot.Option `json:"options,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

type TranscriptResponse struct {
	SessionID string              `json:"sessionId"`
	Messages  []TranscriptMessage `json:"messages"`
}

type CatalogResponse struct {
	Topics   []chatbot.Entry   `json:"topics"`
	Routes   map[string]string `json:"routes"`
	Rules    []chatbot.Rule    `json:"rules"`
	Fallback chatbot.Response  `json:"fallback"`
}

// SocketFrame is both the inbound and outbound WebSocket message.
type SocketFrame struct {
	Type      string        `json:"type"`
	Message   string        `json:"message,omitempty"`
	ActionKey string        `json:"actionKey,omitempty"`
	Label     string        `json:"label,omitempty"`
	Reply     *ChatResponse `json:"reply,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// NewChatResponse builds the wire reply for a resolved response. route is
// only attached to action responses.
func NewChatResponse(sessionID string, resp chatbot.Response, route string) ChatResponse {
	intent := &IntentResponse{Type: resp.Kind.String()}
	switch resp.Kind {
	case chatbot.Options:
		intent.Options = resp.Options
	case chatbot.Action:
		intent.Route = route
	}
	return ChatResponse{SessionID: sessionID, Reply: resp.Text, Intent: intent}
}
