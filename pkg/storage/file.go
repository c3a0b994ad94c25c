package storage

import (
	"fmt"
	"os"
	"sync"

	"github.com/fluxorio/hsm/pkg/hsm"
	"gopkg.in/yaml.v3"
)

// FileStore persists machine state as a small YAML document. It implements
// hsm.Saver and hsm.Loader.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// fileSnapshot is the on-disk layout.
type fileSnapshot struct {
	Current *hsm.StateID                `yaml:"current"`
	History map[hsm.StateID]hsm.StateID `yaml:"history,omitempty"`
}

// NewFileStore creates a store writing to the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// SaveCurrentState implements hsm.Saver.
func (s *FileStore) SaveCurrentState(id hsm.StateID, ok bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.read()
	if err != nil {
		return err
	}
	snap.Current = nil
	if ok {
		snap.Current = &id
	}
	return s.write(snap)
}

// SaveHistoryStates implements hsm.Saver.
func (s *FileStore) SaveHistoryStates(history map[hsm.StateID]hsm.StateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.read()
	if err != nil {
		return err
	}
	snap.History = make(map[hsm.StateID]hsm.StateID, len(history))
	for k, v := range history {
		snap.History[k] = v
	}
	return s.write(snap)
}

// LoadCurrentState implements hsm.Loader.
func (s *FileStore) LoadCurrentState() (hsm.StateID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.read()
	if err != nil {
		return "", false, err
	}
	if snap.Current == nil {
		return "", false, nil
	}
	return *snap.Current, true, nil
}

// LoadHistoryStates implements hsm.Loader.
func (s *FileStore) LoadHistoryStates() (map[hsm.StateID]hsm.StateID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make(map[hsm.StateID]hsm.StateID, len(snap.History))
	for k, v := range snap.History {
		out[k] = v
	}
	return out, nil
}

func (s *FileStore) read() (*fileSnapshot, error) {
	snap := &fileSnapshot{}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return snap, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", s.path, err)
	}
	if err := yaml.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, nil
}

func (s *FileStore) write(snap *fileSnapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", s.path, err)
	}
	return nil
}
