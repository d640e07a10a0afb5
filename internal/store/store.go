package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"riseup-backend/internal/chatbot"
	"riseup-backend/internal/config"
	"riseup-backend/internal/db"
)

// Message is one bubble of a chat transcript.
type Message struct {
	ID        string           `json:"id"`
	SessionID string           `json:"sessionId"`
	Text      string           `json:"text"`
	FromBot   bool             `json:"fromBot"`
	Kind      chatbot.Kind     `json:"kind"`
	Options   []chatbot.Option `json:"options,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Transcript persists chat transcripts per session. Messages of a session are
// returned in the order they were appended.
type Transcript interface {
	Append(ctx context.Context, sessionID string, msgs ...Message) error
	List(ctx context.Context, sessionID string) ([]Message, error)
	Clear(ctx context.Context, sessionID string) error
	// Prune deletes messages older than before and reports how many were removed.
	Prune(ctx context.Context, before time.Time) (int, error)
	Close() error
}

// UserMessage records what the user typed or the label of the option they chose.
func UserMessage(sessionID, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Text:      text,
		Kind:      chatbot.Plain,
		Timestamp: time.Now().UTC(),
	}
}

// BotMessage records a resolved response.
func BotMessage(sessionID string, resp chatbot.Response) Message {
	return Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Text:      resp.Text,
		FromBot:   true,
		Kind:      resp.Kind,
		Options:   resp.Options,
		Timestamp: time.Now().UTC(),
	}
}

// Open builds the transcript backend selected by cfg.Driver.
func Open(cfg config.Store) (Transcript, error) {
	switch cfg.Driver {
	case config.StoreMemory, "":
		return NewMemoryStore(cfg.MaxMessages), nil
	case config.StoreFile:
		return NewFileStore(cfg.Dir, cfg.MaxMessages)
	case config.StorePostgres, config.StoreSQLite:
		database, err := db.New(cfg.Driver, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(); err != nil {
			database.Close()
			return nil, err
		}
		return NewDatabaseStore(database), nil
	default:
		return nil, oops.In("store").With("driver", cfg.Driver).Errorf("unknown transcript store")
	}
}

func stamp(sessionID string, msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.Timestamp.IsZero() {
			m.Timestamp = time.Now().UTC()
		}
		m.SessionID = sessionID
		m.Options = append([]chatbot.Option(nil), m.Options...)
		out[i] = m
	}
	return out
}

func cloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		m.Options = append([]chatbot.Option(nil), m.Options...)
		out[i] = m
	}
	return out
}

func requireSession(sessionID string) error {
	if sessionID == "" {
		return oops.In("store").Errorf("session id is required")
	}
	return nil
}
