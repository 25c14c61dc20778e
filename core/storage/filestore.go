package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// FileStore is a JSON-file DataManager. One file per session, written
// atomically (temp file + rename) so a crash never leaves a torn document.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) sessionPath(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+".json")
}

func (s *FileStore) SaveSession(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(session)
}

func (s *FileStore) write(session *Session) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	path := s.sessionPath(session.ID)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

func (s *FileStore) LoadSession(_ context.Context, id uuid.UUID) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.sessionPath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	session := &Session{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return session, nil
}

func (s *FileStore) AppendUtterance(_ context.Context, sessionID uuid.UUID, utterance Utterance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.sessionPath(sessionID))
	if err != nil {
		return fmt.Errorf("failed to read session file: %w", err)
	}

	session := &Session{}
	if err := json.Unmarshal(data, session); err != nil {
		return fmt.Errorf("failed to unmarshal session: %w", err)
	}

	session.Utterances = append(session.Utterances, utterance)
	return s.write(session)
}
