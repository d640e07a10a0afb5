package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"riseup-backend/internal/chatbot"
	"riseup-backend/internal/types"
)

const (
	FrameMessage = "message"
	FrameAction  = "action"
	FrameClear   = "clear"
	FrameTyping  = "typing"
	FrameReply   = "reply"
	FrameError   = "error"

	socketReadLimit = 16 << 10
	socketIdle      = 5 * time.Minute
)

// handleSocket serves the chat widget channel. Each inbound frame gets a
// typing indicator and, after the configured delay, the reply.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	header := http.Header{}
	sid := getSessionID(r)
	if sid == "" {
		sid = uuid.NewString()
		header.Add("Set-Cookie", sessionCookie(r, sid, int(CookieMaxAge.Seconds())).String())
	}
	header.Set(SessionHeader, sid)

	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		slog.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := slog.With("session_id", sid, "channel", "ws")
	log.Debug("chat socket opened")

	conn.SetReadLimit(socketReadLimit)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(socketIdle))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("chat socket closed", "error", err)
			}
			return
		}
		var in types.SocketFrame
		if err := json.Unmarshal(data, &in); err != nil {
			if err := conn.WriteJSON(types.SocketFrame{Type: FrameError, Error: "invalid JSON frame"}); err != nil {
				return
			}
			continue
		}

		if !s.limiter.Allow("s:" + sid) {
			if err := conn.WriteJSON(types.SocketFrame{Type: FrameError, Error: "too many messages, please slow down"}); err != nil {
				return
			}
			continue
		}

		reply, errMsg := s.handleFrame(ctx, sid, in)
		if errMsg != "" {
			if err := conn.WriteJSON(types.SocketFrame{Type: FrameError, Error: errMsg}); err != nil {
				return
			}
			continue
		}

		if err := conn.WriteJSON(types.SocketFrame{Type: FrameTyping}); err != nil {
			return
		}
		if s.typingDelay > 0 {
			time.Sleep(s.typingDelay)
		}
		if err := conn.WriteJSON(types.SocketFrame{Type: FrameReply, Reply: &reply}); err != nil {
			log.Debug("failed to write reply", "error", err)
			return
		}
	}
}

func (s *Server) handleFrame(ctx context.Context, sid string, in types.SocketFrame) (types.ChatResponse, string) {
	switch in.Type {
	case FrameMessage:
		req := types.ChatRequest{Message: strings.TrimSpace(in.Message)}
		if err := s.validate.Struct(req); err != nil {
			return types.ChatResponse{}, validationMessage(err)
		}
		return s.exchange(ctx, sid, req.Message, s.resolver.ResolveFreeText(req.Message), ""), ""

	case FrameAction:
		req := types.ActionRequest{ActionKey: in.ActionKey, Label: strings.TrimSpace(in.Label)}
		if err := s.validate.Struct(req); err != nil {
			return types.ChatResponse{}, validationMessage(err)
		}
		said := req.Label
		if said == "" {
			said = req.ActionKey
		}
		return s.exchange(ctx, sid, said, s.resolver.ResolveAction(req.ActionKey), req.ActionKey), ""

	case FrameClear:
		if err := s.transcripts.Clear(ctx, sid); err != nil {
			slog.ErrorContext(ctx, "failed to clear transcript", "session_id", sid, "error", err)
			return types.ChatResponse{}, "could not clear the conversation"
		}
		if _, err := s.transcriptFor(ctx, sid); err != nil {
			slog.ErrorContext(ctx, "failed to seed transcript", "session_id", sid, "error", err)
		}
		return types.NewChatResponse(sid, s.resolver.ResolveAction(chatbot.Greeting.String()), ""), ""

	default:
		return types.ChatResponse{}, "unknown frame type " + strconv.Quote(in.Type)
	}
}
