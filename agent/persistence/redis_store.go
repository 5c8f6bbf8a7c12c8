package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/BaSui01/mindflow/types"
)

// RedisSnapshotStore is a Redis-based implementation of SnapshotStore.
// Suitable for deployments that already operate Redis. The snapshot is
// stored as a single JSON value under a prefixed key.
type RedisSnapshotStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisSnapshotStore creates a new Redis-based snapshot store
func NewRedisSnapshotStore(config StoreConfig) (*RedisSnapshotStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
		PoolSize: config.Redis.PoolSize,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keyPrefix := config.Redis.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "mindflow:"
	}

	return &RedisSnapshotStore{
		client:    client,
		keyPrefix: keyPrefix + "snapshot:",
	}, nil
}

func (s *RedisSnapshotStore) latestKey() string {
	return s.keyPrefix + "latest"
}

// Save persists a snapshot, replacing the previous one
func (s *RedisSnapshotStore) Save(ctx context.Context, snap types.Snapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.latestKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Load returns the most recently saved snapshot
func (s *RedisSnapshotStore) Load(ctx context.Context) (types.Snapshot, error) {
	data, err := s.client.Get(ctx, s.latestKey()).Bytes()
	if err == redis.Nil {
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
func (s *RedisSnapshotStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the store
func (s *RedisSnapshotStore) Close() error {
	return s.client.Close()
}
