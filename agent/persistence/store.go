package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/mindflow/types"
)

// Common errors
var (
	ErrNoSnapshot   = errors.New("no snapshot available")
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeFile   StoreType = "file"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeSQL    StoreType = "sql"
)

// RetryConfig defines retry behavior for snapshot writes
type RetryConfig struct {
	// MaxRetries bounds how often a failed save is retried
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// InitialBackoff is the wait before the first retry
	InitialBackoff time.Duration `json:"initial_backoff" yaml:"initial_backoff"`

	// MaxBackoff caps the wait between retries
	MaxBackoff time.Duration `json:"max_backoff" yaml:"max_backoff"`

	// BackoffMultiplier grows the wait after each failed attempt
	BackoffMultiplier float64 `json:"backoff_multiplier" yaml:"backoff_multiplier"`
}

// DefaultRetryConfig returns the default retry configuration:
// 3 retries waiting 1s/2s/4s, capped at 30s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// CalculateBackoff returns the wait before the given retry attempt,
// growing geometrically from InitialBackoff and capped at MaxBackoff.
func (c RetryConfig) CalculateBackoff(attempt int) time.Duration {
	d := c.InitialBackoff
	for ; attempt > 0; attempt-- {
		d = time.Duration(float64(d) * c.BackoffMultiplier)
		if d >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	return d
}

// StoreConfig is the base configuration for all store implementations
type StoreConfig struct {
	// Type is the storage backend type
	Type StoreType `json:"type" yaml:"type"`

	// BaseDir is the base directory for file-based storage
	BaseDir string `json:"base_dir" yaml:"base_dir"`

	// Redis configuration (only used when Type is "redis")
	Redis RedisStoreConfig `json:"redis" yaml:"redis"`

	// SQL configuration (only used when Type is "sql")
	SQL SQLStoreConfig `json:"sql" yaml:"sql"`

	// Retry configuration
	Retry RetryConfig `json:"retry" yaml:"retry"`
}

// RedisStoreConfig contains Redis-specific configuration
type RedisStoreConfig struct {
	// Addr is the Redis server address as host:port
	Addr string `json:"addr" yaml:"addr"`

	// Password is the Redis password (optional)
	Password string `json:"password" yaml:"password"`

	// DB is the Redis database number
	DB int `json:"db" yaml:"db"`

	// PoolSize is the connection pool size
	PoolSize int `json:"pool_size" yaml:"pool_size"`

	// KeyPrefix is the prefix for all Redis keys
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// SQLStoreConfig contains SQL-specific configuration
type SQLStoreConfig struct {
	// Driver selects the database: "postgres" or "sqlite"
	Driver string `json:"driver" yaml:"driver"`

	// DSN is the driver-specific connection string
	DSN string `json:"dsn" yaml:"dsn"`

	// MaxKeep bounds how many snapshot rows are retained (default: 10)
	MaxKeep int `json:"max_keep" yaml:"max_keep"`
}

// DefaultStoreConfig returns the default store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:    StoreTypeMemory,
		BaseDir: "./data/snapshots",
		Redis: RedisStoreConfig{
			Addr:      "localhost:6379",
			DB:        0,
			PoolSize:  10,
			KeyPrefix: "mindflow:",
		},
		SQL: SQLStoreConfig{
			Driver:  "sqlite",
			DSN:     "file:mindflow.db",
			MaxKeep: 10,
		},
		Retry: DefaultRetryConfig(),
	}
}

// SnapshotStore persists the agent's durable state triple: episodic
// records, the semantic graph and the personality vector. Save replaces
// the latest snapshot; Load returns the most recent one or ErrNoSnapshot
// when nothing has been saved yet.
type SnapshotStore interface {
	// Save persists a snapshot
	Save(ctx context.Context, snap types.Snapshot) error

	// Load returns the most recently saved snapshot
	Load(ctx context.Context) (types.Snapshot, error)

	// Ping checks if the store is healthy
	Ping(ctx context.Context) error

	// Close closes the store and releases resources
	Close() error
}
