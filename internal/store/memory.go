package store

import (
	"context"
	"sync"
	"time"
)

type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string][]Message
	maxMessages int
}

func NewMemoryStore(maxMessages int) *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string][]Message),
		maxMessages: maxMessages,
	}
}

func (m *MemoryStore) Append(_ context.Context, sessionID string, msgs ...Message) error {
	if err := requireSession(sessionID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = append(m.sessions[sessionID], stamp(sessionID, msgs)...)
	m.trimLocked(sessionID)
	return nil
}

func (m *MemoryStore) List(_ context.Context, sessionID string) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneMessages(m.sessions[sessionID]), nil
}

func (m *MemoryStore) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryStore) Prune(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, msgs := range m.sessions {
		kept := msgs[:0:0]
		for _, msg := range msgs {
			if msg.Timestamp.Before(before) {
				removed++
				continue
			}
			kept = append(kept, msg)
		}
		if len(kept) == 0 {
			delete(m.sessions, id)
		} else {
			m.sessions[id] = kept
		}
	}
	return removed, nil
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) trimLocked(sessionID string) {
	if m.maxMessages <= 0 {
		return
	}
	msgs := m.sessions[sessionID]
	if len(msgs) > m.maxMessages {
		// Copy so the trimmed head is released with the old array
		kept := make([]Message, m.maxMessages)
		copy(kept, msgs[len(msgs)-m.maxMessages:])
		m.sessions[sessionID] = kept
	}
}
