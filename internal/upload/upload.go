package upload

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Manager stashes the single inbound file of the current upload slot under a
// scratch directory until the conversation consumes or discards it.
type Manager struct {
	dir string
}

// NewManager returns a Manager writing under dir, created on first use.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// Stash writes the uploaded content to a fresh temp file and returns its
// path. The original extension is kept for easier debugging.
func (m *Manager) Stash(filename string, content []byte) (string, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads dir: %w", err)
	}

	path := filepath.Join(m.dir, uuid.NewString()+filepath.Ext(filename))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("stash upload: %w", err)
	}
	return path, nil
}

// Discard removes a stashed upload. Failures are logged, never fatal: a stray
// temp file must not block chat management.
func (m *Manager) Discard(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("[upload] could not remove stashed file %s: %v", path, err)
	}
}
