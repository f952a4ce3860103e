package opportunity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"CryptoSentinel/internal/model"
)

// StateStore persists the opportunity log between restarts.
type StateStore interface {
	Load() (*model.LogState, error)
	Save(state *model.LogState) error
}

// FileStateStore keeps the log state in a JSON file.
type FileStateStore struct {
	Path string
}

func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{Path: path}
}

// Load reads the state file. Returns nil, nil if the file doesn't exist.
func (f *FileStateStore) Load() (*model.LogState, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var state model.LogState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.Path, err)
	}
	return &state, nil
}

// Save writes the state via a temp file and rename.
func (f *FileStateStore) Save(state *model.LogState) error {
	state.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(f.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}
