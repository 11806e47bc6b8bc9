package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Local is a filesystem sink. Images land in {basePath}/{folder}/{name}.
// Thread-safe for concurrent workers.
type Local struct {
	basePath string
	mu       sync.RWMutex
}

// NewLocal creates a filesystem sink rooted at basePath.
func NewLocal(basePath string) (*Local, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Local{basePath: basePath}, nil
}

// Store implements Sink. Storing a name that already exists returns the
// existing path without rewriting the file.
func (l *Local) Store(_ context.Context, folder, name string, data []byte) (string, error) {
	if name == "" {
		return "", fmt.Errorf("name cannot be empty")
	}
	if len(data) == 0 {
		return "", fmt.Errorf("image data cannot be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	dir := filepath.Join(l.basePath, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create folder: %w", err)
	}

	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	return path, nil
}

// Exists implements Sink.
func (l *Local) Exists(_ context.Context, folder, name string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, err := os.Stat(filepath.Join(l.basePath, folder, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
