package infra

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/eliteGoblin/focusd/flowmode/internal/domain"
)

// StatusFile mirrors the daemon's latest published status on disk so CLI
// commands in other processes can read it.
type StatusFile struct {
	path string
}

// NewStatusFile creates a status file at path.
func NewStatusFile(path string) *StatusFile {
	return &StatusFile{path: path}
}

// Write replaces the file contents atomically.
func (f *StatusFile) Write(st domain.Status) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return writeFileAtomic(f.path, data)
}

// Read returns the last written status, or nil when there is none.
func (f *StatusFile) Read() (*domain.Status, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var st domain.Status
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("corrupt status file %s: %w", f.path, err)
	}
	return &st, nil
}

// Remove deletes the file. A missing file is not an error.
func (f *StatusFile) Remove() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
