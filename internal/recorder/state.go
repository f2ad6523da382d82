package recorder

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/codebuildervaibhav/memoant/internal/types"
)

// StateFileName is the name of the recording state file inside the state dir
const StateFileName = "recording.json"

// StateStore persists the active RecordingState so separate CLI invocations
// can find the capture process.
type StateStore struct {
	path string
}

// NewStateStore creates a store for <stateDir>/recording.json
func NewStateStore(stateDir string) *StateStore {
	return &StateStore{path: filepath.Join(stateDir, StateFileName)}
}

// Path returns the state file location
func (s *StateStore) Path() string {
	return s.path
}

// Load returns the stored state, or nil when there is none. A file that
// cannot be decoded is removed and treated as absent.
func (s *StateStore) Load() (*types.RecordingState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read recording state: %w", err)
	}

	var st types.RecordingState
	if err := json.Unmarshal(data, &st); err != nil || st.PID <= 0 || st.Path == "" {
		s.Clear()
		return nil, nil
	}
	if st.RecordingType == "" {
		st.RecordingType = types.RecordingAudio
	}
	return &st, nil
}

// Save writes the state atomically
func (s *StateStore) Save(st *types.RecordingState) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode recording state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".recording-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write recording state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write recording state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to commit recording state: %w", err)
	}
	return nil
}

// Clear removes the state file. A missing file is not an error.
func (s *StateStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear recording state: %w", err)
	}
	return nil
}
