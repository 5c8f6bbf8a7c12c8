package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/BaSui01/mindflow/types"
)

// FileSnapshotStore is a file-based implementation of SnapshotStore.
// Suitable for single-node production deployments. The snapshot lives
// in one JSON file written atomically via a temp file and rename.
type FileSnapshotStore struct {
	baseDir string
	mu      sync.Mutex
	closed  bool
}

// NewFileSnapshotStore creates a new file-based snapshot store
func NewFileSnapshotStore(config StoreConfig) (*FileSnapshotStore, error) {
	baseDir := filepath.Join(config.BaseDir, "snapshots")
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileSnapshotStore{baseDir: baseDir}, nil
}

func (s *FileSnapshotStore) snapshotPath() string {
	return filepath.Join(s.baseDir, "snapshot.json")
}

// Save persists a snapshot to disk, replacing the previous one
func (s *FileSnapshotStore) Save(ctx context.Context, snap types.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	// Atomic write: write to temp file then rename
	path := s.snapshotPath()
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return os.Rename(tempPath, path)
}

// Load returns the snapshot stored on disk
func (s *FileSnapshotStore) Load(ctx context.Context) (types.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return types.Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return types.Snapshot{}, ErrStoreClosed
	}

	data, err := os.ReadFile(s.snapshotPath())
	if os.IsNotExist(err) {
		return types.Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap types.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return types.Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}

// Ping checks if the store is healthy
func (s *FileSnapshotStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if _, err := os.Stat(s.baseDir); err != nil {
		return fmt.Errorf("snapshot directory unavailable: %w", err)
	}
	return nil
}

// Close closes the store
func (s *FileSnapshotStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
