package quota

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"finsight/pkg/errors"
)

// Store persists quota usage state between process restarts. Any durable
// key-value holder works; the gate serializes access, so implementations do
// not need their own locking.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// FileStore keeps usage counters in a flat JSON file, the same layout the
// quota file has always used: {"daily_usage": {...}, "hourly_usage": {...}}.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed quota store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the usage file. A missing file yields an empty state.
func (s *FileStore) Load(_ context.Context) (State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return NewState(), errors.Wrapf(err, "read quota file %s", s.path)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		// A corrupt usage file should not brick the gate; start fresh.
		return NewState(), errors.Wrapf(err, "parse quota file %s", s.path)
	}

	if state.Daily == nil {
		state.Daily = make(map[string]int)
	}
	if state.Hourly == nil {
		state.Hourly = make(map[string]int)
	}

	return state, nil
}

// Save writes the usage file atomically via a temp file rename.
func (s *FileStore) Save(_ context.Context, state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal quota state")
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".quota-*")
	if err != nil {
		return errors.Wrapf(err, "create temp quota file in %s", dir)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "write quota state")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "close temp quota file")
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "replace quota file %s", s.path)
	}

	return nil
}

// MemoryStore is an in-memory store for tests and ephemeral deployments.
type MemoryStore struct {
	state State
	set   bool
}

// NewMemoryStore creates an empty in-memory quota store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the stored state or an empty one.
func (s *MemoryStore) Load(_ context.Context) (State, error) {
	if !s.set {
		return NewState(), nil
	}
	return s.state, nil
}

// Save keeps the state in memory.
func (s *MemoryStore) Save(_ context.Context, state State) error {
	s.state = state
	s.set = true
	return nil
}
