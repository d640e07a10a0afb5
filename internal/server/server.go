package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"riseup-backend/internal/assist"
	"riseup-backend/internal/chatbot"
	"riseup-backend/internal/config"
	"riseup-backend/internal/store"
	"riseup-backend/internal/types"
)

const maxBodyBytes = 16 << 10

// Deps are the collaborators the HTTP surface serves. Assistant and MCP are
// optional.
type Deps struct {
	Resolver    *chatbot.Resolver
	Transcripts store.Transcript
	Assistant   *assist.Assistant
	MCP         http.Handler
}

type Server struct {
	router      *chi.Mux
	cfg         *config.Config
	resolver    *chatbot.Resolver
	transcripts store.Transcript
	assistant   *assist.Assistant
	limiter     *sessionLimiter
	validate    *validator.Validate
	upgrader    websocket.Upgrader
	typingDelay time.Duration
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With", SessionHeader},
		ExposedHeaders:   []string{SessionHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s := &Server{
		router:      r,
		cfg:         cfg,
		resolver:    deps.Resolver,
		transcripts: deps.Transcripts,
		assistant:   deps.Assistant,
		limiter:     newSessionLimiter(cfg.Chat.RateLimit, cfg.Chat.RateBurst),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		typingDelay: cfg.Chat.TypingDelay,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return originAllowed(cfg.AllowedOrigins, r) },
		},
	}
	s.routes(deps.MCP)
	return s
}

func (s *Server) routes(mcp http.Handler) {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Route("/api/chatbot", func(r chi.Router) {
		r.Get("/catalog", s.handleCatalog)
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)
			r.Get("/transcript", s.handleTranscript)
			r.Delete("/transcript", s.handleClearTranscript)
			r.Post("/message", s.handleMessage)
			r.Post("/action", s.handleAction)
			r.Post("/assist", s.handleAssist)
		})
		r.Get("/ws", s.handleSocket)
	})
	if mcp != nil {
		s.router.Handle("/mcp", mcp)
		s.router.Handle("/mcp/*", mcp)
	}
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "store": "ok"}
	if hc, ok := s.transcripts.(interface{ HealthCheck() error }); ok {
		if err := hc.HealthCheck(); err != nil {
			slog.ErrorContext(r.Context(), "store health check failed", "error", err)
			status["store"] = "unavailable"
		}
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, types.CatalogResponse{
		Topics:   s.resolver.Catalog().Entries(),
		Routes:   chatbot.Routes(),
		Rules:    s.resolver.Rules(),
		Fallback: s.resolver.Catalog().Fallback(),
	})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sid := getOrCreateSessionID(r, w)
	msgs, err := s.transcriptFor(r.Context(), sid)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load transcript", "session_id", sid, "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not load the conversation")
		return
	}
	s.writeJSON(w, http.StatusOK, types.TranscriptResponse{SessionID: sid, Messages: toTranscript(msgs)})
}

// transcriptFor returns the session transcript, opening a fresh one with the
// greeting when nothing was said yet.
func (s *Server) transcriptFor(ctx context.Context, sid string) ([]store.Message, error) {
	msgs, err := s.transcripts.List(ctx, sid)
	if err != nil {
		return nil, err
	}
	if len(msgs) > 0 {
		return msgs, nil
	}
	greeting := store.BotMessage(sid, s.resolver.ResolveAction(chatbot.Greeting.String()))
	if err := s.transcripts.Append(ctx, sid, greeting); err != nil {
		return nil, err
	}
	return []store.Message{greeting}, nil
}

func (s *Server) handleClearTranscript(w http.ResponseWriter, r *http.Request) {
	sid := getOrCreateSessionID(r, w)
	if err := s.transcripts.Clear(r.Context(), sid); err != nil {
		slog.ErrorContext(r.Context(), "failed to clear transcript", "session_id", sid, "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not clear the conversation")
		return
	}
	w.Header().Set(SessionHeader, sid)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	sid := getOrCreateSessionID(r, w)
	resp := s.resolver.ResolveFreeText(req.Message)
	s.writeJSON(w, http.StatusOK, s.exchange(r.Context(), sid, req.Message, resp, ""))
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req types.ActionRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.Label = strings.TrimSpace(req.Label)
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	sid := getOrCreateSessionID(r, w)
	said := req.Label
	if said == "" {
		said = req.ActionKey
	}
	resp := s.resolver.ResolveAction(req.ActionKey)
	s.writeJSON(w, http.StatusOK, s.exchange(r.Context(), sid, said, resp, req.ActionKey))
}

func (s *Server) handleAssist(w http.ResponseWriter, r *http.Request) {
	if s.assistant == nil {
		s.writeError(w, http.StatusServiceUnavailable, "assisted answers are not configured")
		return
	}
	var req types.ChatRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	sid := getOrCreateSessionID(r, w)
	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()
	res := s.assistant.Resolve(ctx, req.Message)
	s.writeJSON(w, http.StatusOK, s.exchange(r.Context(), sid, req.Message, res.Response, res.Key))
}

// exchange records one user turn and its reply. A transcript failure is
// logged but never withholds the reply.
func (s *Server) exchange(ctx context.Context, sid, said string, resp chatbot.Response, actionKey string) types.ChatResponse {
	if err := s.transcripts.Append(ctx, sid, store.UserMessage(sid, said), store.BotMessage(sid, resp)); err != nil {
		slog.ErrorContext(ctx, "failed to record exchange", "session_id", sid, "error", err)
	}

	var route string
	if resp.Kind == chatbot.Action && actionKey != "" {
		route, _ = s.resolver.RouteFor(actionKey)
	}
	return types.NewChatResponse(sid, resp, route)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			s.writeError(w, http.StatusBadRequest, "request body is required")
			return false
		}
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return field + " must be at most " + fe.Param() + " characters"
	default:
		return field + " is invalid"
	}
}

func toTranscript(msgs []store.Message) []types.TranscriptMessage {
	out := make([]types.TranscriptMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, types.TranscriptMessage{
			ID:        m.ID,
			Text:      m.Text,
			IsFromBot: m.FromBot,
			Kind:      m.Kind.String(),
			Options:   m.Options,
			Timestamp: m.Timestamp,
		})
	}
	return out
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, types.ErrorResponse{Error: msg})
}

func originAllowed(allowed []string, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// getSessionID retrieves the session ID from cookie, header or query parameter
func getSessionID(r *http.Request) string {
	if cookie, err := GetSessionCookie(r); err == nil && cookie != "" {
		return cookie
	}
	if sid := r.Header.Get(SessionHeader); sid != "" {
		return sid
	}
	if sid := r.URL.Query().Get("sessionId"); sid != "" {
		return sid
	}
	return ""
}

// getOrCreateSessionID gets the existing session ID or issues a new one, and
// echoes it in the response headers.
func getOrCreateSessionID(r *http.Request, w http.ResponseWriter) string {
	sid := getSessionID(r)
	if sid == "" {
		sid = uuid.NewString()
		slog.DebugContext(r.Context(), "creating new chat session", "session_id", sid, "path", r.URL.Path)
		SetSessionCookie(w, r, sid)
	}
	w.Header().Set(SessionHeader, sid)
	return sid
}
