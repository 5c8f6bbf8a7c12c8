package persistence

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func setupSQLStore(t *testing.T, maxKeep int) *SQLSnapshotStore {
	t.Helper()

	config := DefaultStoreConfig()
	config.Type = StoreTypeSQL
	config.SQL.Driver = "sqlite"
	config.SQL.DSN = ":memory:"
	config.SQL.MaxKeep = maxKeep

	store, err := NewSQLSnapshotStore(config)
	if err != nil {
		t.Fatalf("NewSQLSnapshotStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestSQLSnapshotStore tests the SQL-backed snapshot store on SQLite
func TestSQLSnapshotStore(t *testing.T) {
	store := setupSQLStore(t, 10)
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := store.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("LoadEmpty", func(t *testing.T) {
		_, err := store.Load(ctx)
		if !errors.Is(err, ErrNoSnapshot) {
			t.Errorf("expected ErrNoSnapshot, got %v", err)
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		snap := testSnapshot("sql-snap-1")
		if err := store.Save(ctx, snap); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		got, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		assertSnapshotEqual(t, snap, got)
	})

	t.Run("LatestWins", func(t *testing.T) {
		older := testSnapshot("sql-older")
		older.SavedAt = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
		newer := testSnapshot("sql-newer")
		newer.SavedAt = time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC)

		// Insert out of chronological order
		if err := store.Save(ctx, newer); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if err := store.Save(ctx, older); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		got, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got.ID != "sql-newer" {
			t.Errorf("expected newest snapshot by save time, got %s", got.ID)
		}
	})
}

// TestSQLSnapshotStore_TrimHistory verifies bounded snapshot retention
func TestSQLSnapshotStore_TrimHistory(t *testing.T) {
	store := setupSQLStore(t, 2)
	ctx := context.Background()

	base := time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		snap := testSnapshot(fmt.Sprintf("sql-hist-%d", i))
		snap.SavedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.Save(ctx, snap); err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
	}

	var count int64
	if err := store.db.Model(&snapshotRow{}).Count(&count).Error; err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 retained rows, got %d", count)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.ID != "sql-hist-4" {
		t.Errorf("expected newest snapshot after trim, got %s", got.ID)
	}
}

// TestSQLSnapshotStore_UnsupportedDriver verifies the dialector switch
// rejects unknown drivers
func TestSQLSnapshotStore_UnsupportedDriver(t *testing.T) {
	config := DefaultStoreConfig()
	config.Type = StoreTypeSQL
	config.SQL.Driver = "oracle"

	if _, err := NewSQLSnapshotStore(config); err == nil {
		t.Error("expected error for unsupported driver")
	}
}
