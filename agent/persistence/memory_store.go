package persistence

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/BaSui01/mindflow/types"
)

// MemorySnapshotStore is an in-memory implementation of SnapshotStore.
// Suitable for development and testing. Data is lost on restart.
type MemorySnapshotStore struct {
	mu     sync.RWMutex
	latest *types.Snapshot
	closed bool
}

// NewMemorySnapshotStore creates a new in-memory snapshot store
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{}
}

// Save persists a snapshot, replacing the previous one
func (s *MemorySnapshotStore) Save(ctx context.Context, snap types.Snapshot) error {
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

	stored := snap.Clone()
	s.latest = &stored
	return nil
}

// Load returns the most recently saved snapshot
func (s *MemorySnapshotStore) Load(ctx context.Context) (types.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return types.Snapshot{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return types.Snapshot{}, ErrStoreClosed
	}
	if s.latest == nil {
		return types.Snapshot{}, ErrNoSnapshot
	}
	return s.latest.Clone(), nil
}

// Ping checks if the store is healthy
func (s *MemorySnapshotStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Close closes the store
func (s *MemorySnapshotStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
