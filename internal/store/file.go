package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
)

// FileStore keeps one JSON document per session on disk, the way a browser
// widget keeps its transcript in local storage.
type FileStore struct {
	mu          sync.Mutex
	dir         string
	maxMessages int
}

type transcriptFile struct {
	SessionID string    `json:"sessionId"`
	Messages  []Message `json:"messages"`
}

func NewFileStore(dir string, maxMessages int) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, oops.In("store").With("dir", dir).Wrapf(err, "failed to create transcript directory")
	}
	return &FileStore{dir: dir, maxMessages: maxMessages}, nil
}

func (f *FileStore) Append(_ context.Context, sessionID string, msgs ...Message) error {
	if err := requireSession(sessionID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.pathFor(sessionID)
	doc, err := readTranscript(path)
	if err != nil {
		return oops.In("store").With("session_id", sessionID).Wrapf(err, "failed to read transcript")
	}
	doc.SessionID = sessionID
	doc.Messages = append(doc.Messages, stamp(sessionID, msgs)...)
	if f.maxMessages > 0 && len(doc.Messages) > f.maxMessages {
		doc.Messages = doc.Messages[len(doc.Messages)-f.maxMessages:]
	}
	if err := writeTranscript(path, doc); err != nil {
		return oops.In("store").With("session_id", sessionID).Wrapf(err, "failed to write transcript")
	}
	return nil
}

func (f *FileStore) List(_ context.Context, sessionID string) ([]Message, error) {
	if sessionID == "" {
		return []Message{}, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := readTranscript(f.pathFor(sessionID))
	if err != nil {
		return nil, oops.In("store").With("session_id", sessionID).Wrapf(err, "failed to read transcript")
	}
	return cloneMessages(doc.Messages), nil
}

func (f *FileStore) Clear(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.pathFor(sessionID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return oops.In("store").With("session_id", sessionID).Wrapf(err, "failed to clear transcript")
	}
	return nil
}

func (f *FileStore) Prune(ctx context.Context, before time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(f.dir, "*.json"))
	if err != nil {
		return 0, oops.In("store").Wrapf(err, "failed to list transcripts")
	}

	removed := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		doc, err := readTranscript(path)
		if err != nil {
			return removed, oops.In("store").With("path", path).Wrapf(err, "failed to read transcript")
		}
		kept := doc.Messages[:0:0]
		for _, msg := range doc.Messages {
			if msg.Timestamp.Before(before) {
				continue
			}
			kept = append(kept, msg)
		}
		if len(kept) == len(doc.Messages) {
			continue
		}
		removed += len(doc.Messages) - len(kept)
		if len(kept) == 0 {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return removed, oops.In("store").With("path", path).Wrapf(err, "failed to remove transcript")
			}
			continue
		}
		doc.Messages = kept
		if err := writeTranscript(path, doc); err != nil {
			return removed, oops.In("store").With("path", path).Wrapf(err, "failed to write transcript")
		}
	}
	return removed, nil
}

func (f *FileStore) Close() error { return nil }

func (f *FileStore) pathFor(sessionID string) string {
	return filepath.Join(f.dir, fileName(sessionID)+".json")
}

// fileName keeps [A-Za-z0-9_-] and replaces everything else. Ids that needed
// replacing get a hash suffix so distinct ids never share a file.
func fileName(sessionID string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, sessionID)
	if clean == sessionID {
		return clean
	}
	sum := sha256.Sum256([]byte(sessionID))
	return clean + "-" + hex.EncodeToString(sum[:4])
}

func readTranscript(path string) (transcriptFile, error) {
	var doc transcriptFile
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, nil
		}
		return doc, err
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return doc, err
	}
	return doc, nil
}

func writeTranscript(path string, doc transcriptFile) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
