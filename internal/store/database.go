package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/samber/oops"

	"riseup-backend/internal/chatbot"
	"riseup-backend/internal/db"
)

// DatabaseStore stores transcripts in the chat_messages table of a postgres
// or sqlite database.
type DatabaseStore struct {
	db *db.DB

	seqMu   sync.Mutex
	lastSeq int64
}

// NewDatabaseStore expects the schema to be migrated already.
func NewDatabaseStore(database *db.DB) *DatabaseStore {
	return &DatabaseStore{db: database}
}

// nextSeq is monotonic within the process and roughly follows wall time
// across restarts, which keeps append order stable inside a session.
func (ds *DatabaseStore) nextSeq() int64 {
	ds.seqMu.Lock()
	defer ds.seqMu.Unlock()
	seq := time.Now().UnixNano()
	if seq <= ds.lastSeq {
		seq = ds.lastSeq + 1
	}
	ds.lastSeq = seq
	return seq
}

func (ds *DatabaseStore) Append(ctx context.Context, sessionID string, msgs ...Message) error {
	if err := requireSession(sessionID); err != nil {
		return err
	}
	errb := oops.In("store").With("session_id", sessionID)

	tx, err := ds.db.BeginTx(ctx, nil)
	if err != nil {
		return errb.Wrapf(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	query := ds.db.Rebind(`
		INSERT INTO chat_messages (id, session_id, seq, text, from_bot, kind, options, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	for _, msg := range stamp(sessionID, msgs) {
		options, err := json.Marshal(msg.Options)
		if err != nil {
			return errb.Wrapf(err, "failed to encode options")
		}
		if msg.Options == nil {
			options = []byte("[]")
		}
		if _, err := tx.ExecContext(ctx, query,
			msg.ID,
			sessionID,
			ds.nextSeq(),
			msg.Text,
			msg.FromBot,
			msg.Kind.String(),
			string(options),
			msg.Timestamp.UnixMilli(),
		); err != nil {
			return errb.Wrapf(err, "failed to insert message")
		}
	}

	if err := tx.Commit(); err != nil {
		return errb.Wrapf(err, "failed to commit messages")
	}
	return nil
}

func (ds *DatabaseStore) List(ctx context.Context, sessionID string) ([]Message, error) {
	errb := oops.In("store").With("session_id", sessionID)

	rows, err := ds.db.QueryContext(ctx, ds.db.Rebind(`
		SELECT id, session_id, text, from_bot, kind, options, created_at
		FROM chat_messages
		WHERE session_id = ?
		ORDER BY seq ASC
	`), sessionID)
	if err != nil {
		return nil, errb.Wrapf(err, "failed to list messages")
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var (
			msg       Message
			kind      string
			options   string
			createdAt int64
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Text, &msg.FromBot, &kind, &options, &createdAt); err != nil {
			return nil, errb.Wrapf(err, "failed to scan message")
		}
		if err := msg.Kind.UnmarshalText([]byte(kind)); err != nil {
			return nil, errb.With("id", msg.ID).Wrapf(err, "failed to decode kind")
		}
		var opts []chatbot.Option
		if err := json.Unmarshal([]byte(options), &opts); err != nil {
			return nil, errb.With("id", msg.ID).Wrapf(err, "failed to decode options")
		}
		if len(opts) > 0 {
			msg.Options = opts
		}
		msg.Timestamp = time.UnixMilli(createdAt).UTC()
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, errb.Wrapf(err, "failed to iterate messages")
	}
	return msgs, nil
}

func (ds *DatabaseStore) Clear(ctx context.Context, sessionID string) error {
	if _, err := ds.db.ExecContext(ctx, ds.db.Rebind(`DELETE FROM chat_messages WHERE session_id = ?`), sessionID); err != nil {
		return oops.In("store").With("session_id", sessionID).Wrapf(err, "failed to clear transcript")
	}
	return nil
}

func (ds *DatabaseStore) Prune(ctx context.Context, before time.Time) (int, error) {
	res, err := ds.db.ExecContext(ctx, ds.db.Rebind(`DELETE FROM chat_messages WHERE created_at < ?`), before.UnixMilli())
	if err != nil {
		return 0, oops.In("store").Wrapf(err, "failed to prune transcripts")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, oops.In("store").Wrapf(err, "failed to count pruned messages")
	}
	return int(n), nil
}

// HealthCheck pings the underlying database.
func (ds *DatabaseStore) HealthCheck() error {
	return ds.db.HealthCheck()
}

func (ds *DatabaseStore) Close() error {
	return ds.db.Close()
}
