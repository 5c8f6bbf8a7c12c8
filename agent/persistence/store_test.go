package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BaSui01/mindflow/types"
)

// testSnapshot builds a small but fully populated snapshot fixture
func testSnapshot(id string) types.Snapshot {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return types.Snapshot{
		ID:      id,
		SavedAt: created.Add(time.Hour),
		Episodic: []types.MemoryRecord{
			{
				ID:             "rec-1",
				Kind:           types.MemoryEpisodic,
				Content:        "walked along the harbor at dusk",
				Embedding:      []float64{0.1, 0.2, 0.3},
				Importance:     0.8,
				Valence:        0.5,
				CreatedAt:      created,
				LastAccessedAt: created,
				DecayRate:      0.01,
			},
			{
				ID:             "rec-2",
				Kind:           types.MemorySemantic,
				Content:        "consolidated: harbor, dusk",
				Embedding:      []float64{0.3, 0.2, 0.1},
				Importance:     0.4,
				Valence:        -0.2,
				CreatedAt:      created.Add(10 * time.Minute),
				LastAccessedAt: created.Add(20 * time.Minute),
				DecayRate:      0.005,
			},
		},
		Semantic: types.GraphSnapshot{
			Nodes: []types.ConceptNode{
				{Label: "dusk", Weight: 0.9, TouchCount: 2, FirstSeen: created, LastReinforced: created},
				{Label: "harbor", Weight: 1.5, TouchCount: 3, FirstSeen: created, LastReinforced: created},
			},
			Edges: []types.ConceptEdge{
				{A: "dusk", B: "harbor", Weight: 0.7, LastReinforced: created},
			},
		},
		Personality: types.TraitVector{
			types.TraitCuriosity: 0.8,
			types.TraitEmpathy:   0.7,
		},
	}
}

// assertSnapshotEqual verifies the persistence triple survives a
// save/load round trip
func assertSnapshotEqual(t *testing.T, want, got types.Snapshot) {
	t.Helper()

	if got.ID != want.ID {
		t.Errorf("ID mismatch: got %s, want %s", got.ID, want.ID)
	}
	if len(got.Episodic) != len(want.Episodic) {
		t.Fatalf("Episodic count mismatch: got %d, want %d", len(got.Episodic), len(want.Episodic))
	}
	for i := range want.Episodic {
		w, g := want.Episodic[i], got.Episodic[i]
		if g.ID != w.ID || g.Kind != w.Kind || g.Content != w.Content {
			t.Errorf("record %d identity mismatch: got %+v", i, g)
		}
		if g.Importance != w.Importance || g.Valence != w.Valence || g.DecayRate != w.DecayRate {
			t.Errorf("record %d weights mismatch: got %+v", i, g)
		}
		if !g.CreatedAt.Equal(w.CreatedAt) || !g.LastAccessedAt.Equal(w.LastAccessedAt) {
			t.Errorf("record %d timestamps mismatch: got %+v", i, g)
		}
		if len(g.Embedding) != len(w.Embedding) {
			t.Fatalf("record %d embedding length mismatch", i)
		}
		for j := range w.Embedding {
			if g.Embedding[j] != w.Embedding[j] {
				t.Errorf("record %d embedding[%d] mismatch: got %v, want %v", i, j, g.Embedding[j], w.Embedding[j])
			}
		}
	}

	if len(got.Semantic.Nodes) != len(want.Semantic.Nodes) {
		t.Fatalf("node count mismatch: got %d, want %d", len(got.Semantic.Nodes), len(want.Semantic.Nodes))
	}
	for i := range want.Semantic.Nodes {
		w, g := want.Semantic.Nodes[i], got.Semantic.Nodes[i]
		if g.Label != w.Label || g.Weight != w.Weight || g.TouchCount != w.TouchCount {
			t.Errorf("node %d mismatch: got %+v, want %+v", i, g, w)
		}
	}
	if len(got.Semantic.Edges) != len(want.Semantic.Edges) {
		t.Fatalf("edge count mismatch: got %d, want %d", len(got.Semantic.Edges), len(want.Semantic.Edges))
	}
	for i := range want.Semantic.Edges {
		w, g := want.Semantic.Edges[i], got.Semantic.Edges[i]
		if g.A != w.A || g.B != w.B || g.Weight != w.Weight {
			t.Errorf("edge %d mismatch: got %+v, want %+v", i, g, w)
		}
	}

	if len(got.Personality) != len(want.Personality) {
		t.Fatalf("trait count mismatch: got %d, want %d", len(got.Personality), len(want.Personality))
	}
	for name, w := range want.Personality {
		if got.Personality[name] != w {
			t.Errorf("trait %s mismatch: got %v, want %v", name, got.Personality[name], w)
		}
	}
}

// TestMemorySnapshotStore tests the in-memory snapshot store
func TestMemorySnapshotStore(t *testing.T) {
	store := NewMemorySnapshotStore()
	defer store.Close()

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
		snap := testSnapshot("snap-1")
		if err := store.Save(ctx, snap); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		got, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		assertSnapshotEqual(t, snap, got)
	})

	t.Run("SaveIsolatesCaller", func(t *testing.T) {
		snap := testSnapshot("snap-iso")
		if err := store.Save(ctx, snap); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		// Mutating the caller's copy must not leak into the store
		snap.Episodic[0].Embedding[0] = 99
		snap.Personality[types.TraitCuriosity] = -1

		got, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got.Episodic[0].Embedding[0] == 99 {
			t.Error("stored embedding shares memory with caller")
		}
		if got.Personality[types.TraitCuriosity] == -1 {
			t.Error("stored personality shares memory with caller")
		}
	})

	t.Run("SaveReplacesPrevious", func(t *testing.T) {
		first := testSnapshot("snap-old")
		second := testSnapshot("snap-new")
		if err := store.Save(ctx, first); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if err := store.Save(ctx, second); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		got, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got.ID != "snap-new" {
			t.Errorf("expected latest snapshot, got %s", got.ID)
		}
	})

	t.Run("ClosedStoreErrors", func(t *testing.T) {
		closed := NewMemorySnapshotStore()
		closed.Close()

		if err := closed.Save(ctx, testSnapshot("x")); !errors.Is(err, ErrStoreClosed) {
			t.Errorf("expected ErrStoreClosed from Save, got %v", err)
		}
		if _, err := closed.Load(ctx); !errors.Is(err, ErrStoreClosed) {
			t.Errorf("expected ErrStoreClosed from Load, got %v", err)
		}
		if err := closed.Ping(ctx); !errors.Is(err, ErrStoreClosed) {
			t.Errorf("expected ErrStoreClosed from Ping, got %v", err)
		}
	})
}

// TestFileSnapshotStore tests the file-based snapshot store
func TestFileSnapshotStore(t *testing.T) {
	config := DefaultStoreConfig()
	config.Type = StoreTypeFile
	config.BaseDir = t.TempDir()

	store, err := NewFileSnapshotStore(config)
	if err != nil {
		t.Fatalf("NewFileSnapshotStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	t.Run("LoadEmpty", func(t *testing.T) {
		_, err := store.Load(ctx)
		if !errors.Is(err, ErrNoSnapshot) {
			t.Errorf("expected ErrNoSnapshot, got %v", err)
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		snap := testSnapshot("file-snap-1")
		if err := store.Save(ctx, snap); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		got, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		assertSnapshotEqual(t, snap, got)
	})

	t.Run("SurvivesReopen", func(t *testing.T) {
		snap := testSnapshot("file-snap-2")
		if err := store.Save(ctx, snap); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		reopened, err := NewFileSnapshotStore(config)
		if err != nil {
			t.Fatalf("reopen failed: %v", err)
		}
		defer reopened.Close()

		got, err := reopened.Load(ctx)
		if err != nil {
			t.Fatalf("Load after reopen failed: %v", err)
		}
		assertSnapshotEqual(t, snap, got)
	})

	t.Run("Ping", func(t *testing.T) {
		if err := store.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})
}

// TestNewSnapshotStore tests the factory dispatch
func TestNewSnapshotStore(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		config := DefaultStoreConfig()
		store, err := NewSnapshotStore(config)
		if err != nil {
			t.Fatalf("factory failed: %v", err)
		}
		defer store.Close()
		if _, ok := store.(*MemorySnapshotStore); !ok {
			t.Errorf("expected MemorySnapshotStore, got %T", store)
		}
	})

	t.Run("EmptyTypeDefaultsToMemory", func(t *testing.T) {
		config := DefaultStoreConfig()
		config.Type = ""
		store, err := NewSnapshotStore(config)
		if err != nil {
			t.Fatalf("factory failed: %v", err)
		}
		defer store.Close()
		if _, ok := store.(*MemorySnapshotStore); !ok {
			t.Errorf("expected MemorySnapshotStore, got %T", store)
		}
	})

	t.Run("File", func(t *testing.T) {
		config := DefaultStoreConfig()
		config.Type = StoreTypeFile
		config.BaseDir = t.TempDir()
		store, err := NewSnapshotStore(config)
		if err != nil {
			t.Fatalf("factory failed: %v", err)
		}
		defer store.Close()
		if _, ok := store.(*FileSnapshotStore); !ok {
			t.Errorf("expected FileSnapshotStore, got %T", store)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		config := DefaultStoreConfig()
		config.Type = "carrier-pigeon"
		if _, err := NewSnapshotStore(config); err == nil {
			t.Error("expected error for unsupported store type")
		}
	})
}

// TestRetryConfig_CalculateBackoff tests exponential backoff progression
func TestRetryConfig_CalculateBackoff(t *testing.T) {
	config := DefaultRetryConfig()

	if got := config.CalculateBackoff(0); got != 1*time.Second {
		t.Errorf("attempt 0: got %v, want 1s", got)
	}
	if got := config.CalculateBackoff(1); got != 2*time.Second {
		t.Errorf("attempt 1: got %v, want 2s", got)
	}
	if got := config.CalculateBackoff(2); got != 4*time.Second {
		t.Errorf("attempt 2: got %v, want 4s", got)
	}

	capped := RetryConfig{
		MaxRetries:        5,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        3 * time.Second,
		BackoffMultiplier: 2.0,
	}
	if got := capped.CalculateBackoff(4); got != 3*time.Second {
		t.Errorf("capped backoff: got %v, want 3s", got)
	}
}
