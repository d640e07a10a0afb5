package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"riseup-backend/internal/chatbot"
	"riseup-backend/internal/config"
	"riseup-backend/internal/store"
	"riseup-backend/internal/types"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, store.Transcript) {
	t.Helper()
	cfg, err := config.LoadFrom(map[string]string{"CHAT_TYPING_DELAY": "0s", "CHAT_RATE_LIMIT": "1000", "CHAT_RATE_BURST": "1000"})
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if mutate != nil {
		mutate(cfg)
	}
	transcripts := store.NewMemoryStore(cfg.Store.MaxMessages)
	return NewServer(cfg, Deps{Resolver: chatbot.New(), Transcripts: transcripts}), transcripts
}

func send(t *testing.T, h http.Handler, method, path, sid string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if sid != "" {
		req.Header.Set(SessionHeader, sid)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeReply(t *testing.T, rec *httptest.ResponseRecorder) types.ChatResponse {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var out types.ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestMessageResolvesFreeText(t *testing.T) {
	s, transcripts := newTestServer(t, nil)
	r := chatbot.New()

	rec := send(t, s.Router(), http.MethodPost, "/api/chatbot/message", "sess-1", types.ChatRequest{Message: "  What services do you offer?  "})
	got := decodeReply(t, rec)

	want := r.ResolveAction("services")
	if got.SessionID != "sess-1" || got.Reply != want.Text {
		t.Fatalf("reply = %+v", got)
	}
	if got.Intent == nil || got.Intent.Type != "options" || len(got.Intent.Options) != len(want.Options) || got.Intent.Route != "" {
		t.Fatalf("intent = %+v", got.Intent)
	}

	msgs, _ := transcripts.List(t.Context(), "sess-1")
	if len(msgs) != 2 || msgs[0].FromBot || msgs[0].Text != "What services do you offer?" || !msgs[1].FromBot {
		t.Fatalf("transcript = %+v", msgs)
	}
}

func TestActionIncludesRouteOnlyForActions(t *testing.T) {
	s, transcripts := newTestServer(t, nil)

	got := decodeReply(t, send(t, s.Router(), http.MethodPost, "/api/chatbot/action", "sess-2",
		types.ActionRequest{ActionKey: "portfolio", Label: "View Portfolio"}))
	if got.Intent.Type != "action" || got.Intent.Route != "/projects" || len(got.Intent.Options) != 0 {
		t.Fatalf("portfolio intent = %+v", got.Intent)
	}

	got = decodeReply(t, send(t, s.Router(), http.MethodPost, "/api/chatbot/action", "sess-2",
		types.ActionRequest{ActionKey: "team"}))
	if got.Intent.Type != "options" || got.Intent.Route != "" {
		t.Fatalf("team intent = %+v", got.Intent)
	}

	got = decodeReply(t, send(t, s.Router(), http.MethodPost, "/api/chatbot/action", "sess-2",
		types.ActionRequest{ActionKey: "nope"}))
	if got.Reply != chatbot.New().Catalog().Fallback().Text {
		t.Fatalf("unknown action reply = %q", got.Reply)
	}

	msgs, _ := transcripts.List(t.Context(), "sess-2")
	if len(msgs) != 6 || msgs[0].Text != "View Portfolio" || msgs[2].Text != "team" {
		t.Fatalf("transcript = %+v", msgs)
	}
}

func TestActionKeyMatchesExactly(t *testing.T) {
	s, _ := newTestServer(t, nil)
	fallback := chatbot.New().Catalog().Fallback()

	for _, key := range []string{" services", "services ", " portfolio", "Portfolio"} {
		got := decodeReply(t, send(t, s.Router(), http.MethodPost, "/api/chatbot/action", "sess-exact",
			types.ActionRequest{ActionKey: key}))
		if got.Reply != fallback.Text || got.Intent.Route != "" {
			t.Fatalf("action %q = %+v, want fallback without route", key, got)
		}
	}
}

func TestTranscriptSeedsGreetingAndClears(t *testing.T) {
	s, _ := newTestServer(t, nil)
	greeting := chatbot.New().ResolveAction("greeting")

	rec := send(t, s.Router(), http.MethodGet, "/api/chatbot/transcript", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	sid := rec.Header().Get(SessionHeader)
	if sid == "" {
		t.Fatalf("no session issued")
	}
	if !strings.Contains(rec.Header().Get("Set-Cookie"), CookieName+"="+sid) {
		t.Fatalf("cookie not set: %q", rec.Header().Get("Set-Cookie"))
	}
	var tr types.TranscriptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &tr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tr.Messages) != 1 || tr.Messages[0].Text != greeting.Text || !tr.Messages[0].IsFromBot || len(tr.Messages[0].Options) != 5 {
		t.Fatalf("seeded transcript = %+v", tr)
	}

	send(t, s.Router(), http.MethodPost, "/api/chatbot/message", sid, types.ChatRequest{Message: "hello"})
	if err := json.Unmarshal(send(t, s.Router(), http.MethodGet, "/api/chatbot/transcript", sid, nil).Body.Bytes(), &tr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tr.Messages) != 3 {
		t.Fatalf("transcript has %d messages, want 3", len(tr.Messages))
	}

	if rec := send(t, s.Router(), http.MethodDelete, "/api/chatbot/transcript", sid, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("clear status %d", rec.Code)
	}
	if err := json.Unmarshal(send(t, s.Router(), http.MethodGet, "/api/chatbot/transcript", sid, nil).Body.Bytes(), &tr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tr.Messages) != 1 || tr.Messages[0].Text != greeting.Text {
		t.Fatalf("cleared transcript = %+v", tr.Messages)
	}
}

func TestSessionFromCookieWins(t *testing.T) {
	s, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/chatbot/message?sessionId=from-query", strings.NewReader(`{"message":"hi"}`))
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
	req.Header.Set(SessionHeader, "from-header")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if got := decodeReply(t, rec); got.SessionID != "from-cookie" {
		t.Fatalf("session = %q", got.SessionID)
	}
}

func TestValidationErrors(t *testing.T) {
	s, _ := newTestServer(t, nil)
	tests := []struct {
		name string
		path string
		body any
		want string
	}{
		{"bad json", "/api/chatbot/message", "{", "invalid JSON"},
		{"empty body", "/api/chatbot/message", nil, "required"},
		{"blank message", "/api/chatbot/message", types.ChatRequest{Message: "   "}, "message is required"},
		{"long message", "/api/chatbot/message", types.ChatRequest{Message: strings.Repeat("a", 1001)}, "at most 1000"},
		{"missing key", "/api/chatbot/action", types.ActionRequest{Label: "x"}, "actionKey is required"},
		{"long key", "/api/chatbot/action", types.ActionRequest{ActionKey: strings.Repeat("k", 65)}, "at most 64"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := send(t, s.Router(), http.MethodPost, tt.path, "sess-v", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Fatalf("body %s does not mention %q", rec.Body.String(), tt.want)
			}
		})
	}
}

func TestAssistUnavailableWithoutAssistant(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := send(t, s.Router(), http.MethodPost, "/api/chatbot/assist", "sess-a", types.ChatRequest{Message: "hi"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Chat.RateLimit = 0.001
		cfg.Chat.RateBurst = 2
	})
	for i := 0; i < 2; i++ {
		if rec := send(t, s.Router(), http.MethodPost, "/api/chatbot/message", "sess-r", types.ChatRequest{Message: "hi"}); rec.Code != http.StatusOK {
			t.Fatalf("request %d status %d", i, rec.Code)
		}
	}
	if rec := send(t, s.Router(), http.MethodPost, "/api/chatbot/message", "sess-r", types.ChatRequest{Message: "hi"}); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429", rec.Code)
	}
	if rec := send(t, s.Router(), http.MethodPost, "/api/chatbot/message", "sess-other", types.ChatRequest{Message: "hi"}); rec.Code != http.StatusOK {
		t.Fatalf("other session limited: %d", rec.Code)
	}
}

func TestCatalogAndHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := send(t, s.Router(), http.MethodGet, "/api/chatbot/catalog", "", nil)
	var cat types.CatalogResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &cat); err != nil {
		t.Fatalf("decode catalog: %v", err)
	}
	if len(cat.Topics) != len(chatbot.Topics()) || cat.Routes["team-page"] != "/team" || len(cat.Rules) != 10 {
		t.Fatalf("catalog = %d topics, routes %v, %d rules", len(cat.Topics), cat.Routes, len(cat.Rules))
	}
	if cat.Rules[0].Topic != chatbot.Services || cat.Rules[9].Topic != chatbot.Greeting {
		t.Fatalf("rule order = %v ... %v", cat.Rules[0].Topic, cat.Rules[9].Topic)
	}

	rec = send(t, s.Router(), http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("health = %d %s", rec.Code, rec.Body.String())
	}
}

func TestWebSocketConversation(t *testing.T) {
	s, transcripts := newTestServer(t, nil)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chatbot/ws"
	header := http.Header{}
	header.Set(SessionHeader, "ws-session")
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.Header.Get(SessionHeader) != "ws-session" {
		t.Fatalf("session header = %q", resp.Header.Get(SessionHeader))
	}

	read := func() types.SocketFrame {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var f types.SocketFrame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("read: %v", err)
		}
		return f
	}

	if err := conn.WriteJSON(types.SocketFrame{Type: FrameAction, ActionKey: "careers", Label: "Careers"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f := read(); f.Type != FrameTyping {
		t.Fatalf("first frame = %+v", f)
	}
	f := read()
	if f.Type != FrameReply || f.Reply == nil || f.Reply.Intent.Route != "/careers" {
		t.Fatalf("reply frame = %+v", f)
	}

	if err := conn.WriteJSON(types.SocketFrame{Type: "dance"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f := read(); f.Type != FrameError || !strings.Contains(f.Error, "dance") {
		t.Fatalf("error frame = %+v", f)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f := read(); f.Type != FrameError || !strings.Contains(f.Error, "invalid JSON") {
		t.Fatalf("malformed frame answer = %+v", f)
	}

	if err := conn.WriteJSON(types.SocketFrame{Type: FrameAction, ActionKey: " services"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	read()
	if f := read(); f.Reply == nil || f.Reply.Reply != chatbot.New().Catalog().Fallback().Text {
		t.Fatalf("padded key reply = %+v", f)
	}

	if err := conn.WriteJSON(types.SocketFrame{Type: FrameMessage, Message: "I need a website"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	read()
	if f := read(); f.Reply == nil || f.Reply.Reply != chatbot.New().ResolveAction("web-dev").Text {
		t.Fatalf("web reply = %+v", f)
	}

	msgs, _ := transcripts.List(t.Context(), "ws-session")
	if len(msgs) != 6 {
		t.Fatalf("transcript has %d messages, want 6", len(msgs))
	}

	if err := conn.WriteJSON(types.SocketFrame{Type: FrameClear}); err != nil {
		t.Fatalf("write: %v", err)
	}
	read()
	if f := read(); f.Reply == nil || f.Reply.Intent.Type != "options" || len(f.Reply.Intent.Options) != 5 {
		t.Fatalf("clear reply = %+v", f)
	}
	msgs, _ = transcripts.List(t.Context(), "ws-session")
	if len(msgs) != 1 {
		t.Fatalf("after clear transcript has %d messages, want 1", len(msgs))
	}
}
