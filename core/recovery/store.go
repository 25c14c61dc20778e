package recovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the durable recovery record. Only one session can be actively
// recovering at a time, so the record is a single last-writer-wins document.
type State struct {
	ErrorOccurredAt     time.Time     `json:"errorOccurredAt"`
	RecoveringSessionID uuid.UUID     `json:"recoveringSessionId"`
	AttemptCount        int           `json:"attemptCount"`
	DegradedMode        *DegradedMode `json:"degradedMode,omitempty"`
}

// Store persists recovery state across process restarts. Load returns
// (nil, nil) when no state has been saved.
type Store interface {
	Load() (*State, error)
	Save(state State) error
	Clear() error
}

type memoryStore struct {
	mu    sync.Mutex
	state *State
}

func (s *memoryStore) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, nil
	}
	state := *s.state
	return &state, nil
}

func (s *memoryStore) Save(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = &state
	return nil
}

func (s *memoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = nil
	return nil
}

// FileStore keeps the recovery record in a single JSON file, overwritten
// atomically on every change.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recovery state directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read recovery state: %w", err)
	}

	state := &State{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recovery state: %w", err)
	}
	return state, nil
}

func (s *FileStore) Save(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal recovery state: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write recovery state: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace recovery state: %w", err)
	}
	return nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear recovery state: %w", err)
	}
	return nil
}
