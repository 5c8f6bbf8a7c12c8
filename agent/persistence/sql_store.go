package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/BaSui01/mindflow/types"
)

// snapshotRow is the relational form of a snapshot: the triple is kept
// as an opaque JSON payload, indexed by save time for latest-first
// retrieval.
type snapshotRow struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	SnapshotID string    `gorm:"size:64;uniqueIndex"`
	SavedAt    time.Time `gorm:"index"`
	Payload    []byte
	CreatedAt  time.Time
}

func (snapshotRow) TableName() string { return "mindflow_snapshots" }

// SQLSnapshotStore is a SQL-backed implementation of SnapshotStore.
// It keeps a bounded history of snapshots and loads the newest one.
// Postgres is intended for production; SQLite serves tests and
// single-binary deployments.
type SQLSnapshotStore struct {
	db      *gorm.DB
	maxKeep int
}

// NewSQLSnapshotStore creates a new SQL-based snapshot store
func NewSQLSnapshotStore(config StoreConfig) (*SQLSnapshotStore, error) {
	var dialector gorm.Dialector
	switch config.SQL.Driver {
	case "postgres":
		dialector = postgres.Open(config.SQL.DSN)
	case "sqlite", "":
		dialector = sqlite.Open(config.SQL.DSN)
	default:
		return nil, fmt.Errorf("unsupported sql driver: %s", config.SQL.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.AutoMigrate(&snapshotRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate snapshot table: %w", err)
	}

	maxKeep := config.SQL.MaxKeep
	if maxKeep <= 0 {
		maxKeep = 10
	}
	return &SQLSnapshotStore{db: db, maxKeep: maxKeep}, nil
}

// Save persists a snapshot row and trims history beyond the retention
// bound
func (s *SQLSnapshotStore) Save(ctx context.Context, snap types.Snapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now()
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	row := snapshotRow{
		SnapshotID: snap.ID,
		SavedAt:    snap.SavedAt,
		Payload:    payload,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return s.trim(ctx)
}

// trim deletes all but the newest maxKeep rows
func (s *SQLSnapshotStore) trim(ctx context.Context) error {
	var keep []uint
	err := s.db.WithContext(ctx).
		Model(&snapshotRow{}).
		Order("saved_at DESC, id DESC").
		Limit(s.maxKeep).
		Pluck("id", &keep).Error
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}
	if len(keep) < s.maxKeep {
		return nil
	}
	err = s.db.WithContext(ctx).
		Where("id NOT IN ?", keep).
		Delete(&snapshotRow{}).Error
	if err != nil {
		return fmt.Errorf("failed to trim snapshots: %w", err)
	}
	return nil
}

// Load returns the most recently saved snapshot
func (s *SQLSnapshotStore) Load(ctx context.Context) (types.Snapshot, error) {
	var row snapshotRow
	err := s.db.WithContext(ctx).
		Order("saved_at DESC, id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap types.Snapshot
	if err := json.Unmarshal(row.Payload, &snap); err != nil {
		return types.Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}

// Ping checks if the store is healthy
func (s *SQLSnapshotStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the store
func (s *SQLSnapshotStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
