package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/mindflow/agent/persistence"
	"github.com/BaSui01/mindflow/types"
)

// seedHarborRecords stores two similar lighthouse records that should
// cluster together plus one cold, old, unrelated record that should be
// pruned.
func seedHarborRecords(t *testing.T, sys *System, now time.Time) {
	t.Helper()
	ctx := context.Background()

	_, err := sys.Store(ctx, types.MemoryRecord{
		Content:    "the lighthouse beam swept across the bay",
		Embedding:  []float64{1, 0, 0},
		Importance: 0.5,
		Valence:    0.5,
	})
	require.NoError(t, err)

	_, err = sys.Store(ctx, types.MemoryRecord{
		Content:    "lighthouse beam flickered over the bay at night",
		Embedding:  []float64{0.9, 0.1, 0},
		Importance: 0.5,
		Valence:    0.5,
	})
	require.NoError(t, err)

	_, err = sys.Store(ctx, types.MemoryRecord{
		Content:    "a forgettable errand long ago",
		Embedding:  []float64{0, 1, 0},
		Importance: 0.01,
		CreatedAt:  now.Add(-40 * 24 * time.Hour),
	})
	require.NoError(t, err)
}

func TestConsolidator_TickPipeline(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	sys := NewSystem(SystemConfig{
		WorkingCapacity: 8,
		Episodic:        EpisodicConfig{EmbeddingDim: 3},
		Now:             clock,
	}, zap.NewNop())
	seedHarborRecords(t, sys, now)

	c := NewConsolidator(sys, ConsolidatorConfig{
		Interval:          time.Minute,
		ClusterSimilarity: 0.65,
		ClusterMinSize:    2,
		ImportanceFloor:   0.05,
		MaxAge:            30 * 24 * time.Hour,
		LearningRate:      0.1,
		Now:               clock,
	}, nil, zap.NewNop())

	var report TickReport
	c.OnTick(func(r TickReport) { report = r })

	require.NoError(t, c.TickNow(context.Background()))

	assert.Equal(t, 1, report.Decayed, "only the old record had elapsed time to decay")
	assert.Equal(t, 3, report.Recent)
	assert.Equal(t, 1, report.Clusters)
	assert.Equal(t, 1, report.Pruned, "cold old record removed")
	assert.NoError(t, report.Err)

	stats := sys.Stats()
	assert.Equal(t, 2, stats.EpisodicCount)
	assert.Equal(t, 1, stats.SemanticCount, "cluster digest written")
	assert.Equal(t, 3, stats.ConceptNodes)
	assert.Equal(t, 3, stats.ConceptEdges)

	assert.True(t, sys.graph.Has("lighthouse"))
	assert.True(t, sys.graph.Has("beam"))
	assert.True(t, sys.graph.Has("bay"))

	var digest types.MemoryRecord
	for _, rec := range sys.episodic.Export() {
		if rec.Kind == types.MemorySemantic {
			digest = rec
		}
	}
	assert.Equal(t, "consolidated: bay, beam, lighthouse", digest.Content)
	assert.Greater(t, digest.Importance, 0.9, "tight cluster yields high cohesion")

	// Personality drifted toward the tick's behavioral signals.
	traits := sys.Personality().Traits()
	assert.InDelta(t, 0.66333, traits[types.TraitEmpathy], 1e-4)
	assert.InDelta(t, 0.82, traits[types.TraitCuriosity], 1e-4)
	assert.InDelta(t, 0.81, traits[types.TraitIntrospection], 1e-4)
	assert.InDelta(t, 0.51667, traits[types.TraitCreativity], 1e-4)
	assert.InDelta(t, 0.60667, traits[types.TraitSkepticism], 1e-4)
}

func TestConsolidator_QuietWindowLeavesPersonalityAlone(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	sys := NewSystem(SystemConfig{
		WorkingCapacity: 8,
		Episodic:        EpisodicConfig{EmbeddingDim: 3},
		Now:             clock,
	}, zap.NewNop())
	seedHarborRecords(t, sys, now)

	c := NewConsolidator(sys, ConsolidatorConfig{
		ClusterMinSize: 2,
		LearningRate:   0.1,
		Now:            clock,
	}, nil, zap.NewNop())

	require.NoError(t, c.TickNow(context.Background()))
	after := sys.Personality().Traits()

	// Nothing was accessed since the first tick, so the second one only
	// decays and leaves the personality untouched.
	now = now.Add(time.Hour)
	var report TickReport
	c.OnTick(func(r TickReport) { report = r })
	require.NoError(t, c.TickNow(context.Background()))

	assert.Equal(t, 0, report.Recent)
	assert.Equal(t, 0, report.Clusters)
	assert.Equal(t, 3, report.Decayed)
	assert.Equal(t, after, sys.Personality().Traits())
}

func TestConsolidator_FailedTickKeepsWindowOpen(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	sys := NewSystem(SystemConfig{
		WorkingCapacity: 8,
		Episodic:        EpisodicConfig{EmbeddingDim: 3},
		Now:             clock,
	}, zap.NewNop())
	seedHarborRecords(t, sys, now)

	c := NewConsolidator(sys, ConsolidatorConfig{ClusterMinSize: 2, Now: clock}, nil, zap.NewNop())

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.TickNow(cancelled)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrCodeConsolidation))

	// The aborted tick must not advance the clustering window: a retry
	// still sees every record.
	var report TickReport
	c.OnTick(func(r TickReport) { report = r })
	require.NoError(t, c.TickNow(context.Background()))
	assert.Equal(t, 3, report.Recent)
	assert.Equal(t, 1, report.Clusters)
}

func TestConsolidator_CheckpointPersistsSnapshot(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	sys := NewSystem(SystemConfig{
		WorkingCapacity: 8,
		Episodic:        EpisodicConfig{EmbeddingDim: 3},
		Now:             clock,
	}, zap.NewNop())
	seedHarborRecords(t, sys, now)

	store := persistence.NewMemorySnapshotStore()
	c := NewConsolidator(sys, ConsolidatorConfig{ClusterMinSize: 2, Now: clock}, store, zap.NewNop())

	var report TickReport
	c.OnTick(func(r TickReport) { report = r })
	require.NoError(t, c.TickNow(context.Background()))
	require.NoError(t, report.CheckpointErr)

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Episodic, 3, "two survivors plus the digest")
	assert.Len(t, snap.Semantic.Nodes, 3)
	assert.Len(t, snap.Semantic.Edges, 3)
	assert.Len(t, snap.Personality, 5)
}

// flakySnapshotStore fails the first N saves, then delegates.
type flakySnapshotStore struct {
	mu       sync.Mutex
	failures int
	saves    int
	inner    *persistence.MemorySnapshotStore
}

func newFlakySnapshotStore(failures int) *flakySnapshotStore {
	return &flakySnapshotStore{
		failures: failures,
		inner:    persistence.NewMemorySnapshotStore(),
	}
}

func (s *flakySnapshotStore) Save(ctx context.Context, snap types.Snapshot) error {
	s.mu.Lock()
	s.saves++
	fail := s.saves <= s.failures
	s.mu.Unlock()
	if fail {
		return errors.New("transient storage outage")
	}
	return s.inner.Save(ctx, snap)
}

func (s *flakySnapshotStore) Load(ctx context.Context) (types.Snapshot, error) {
	return s.inner.Load(ctx)
}

func (s *flakySnapshotStore) Ping(ctx context.Context) error { return s.inner.Ping(ctx) }
func (s *flakySnapshotStore) Close() error                   { return s.inner.Close() }

func (s *flakySnapshotStore) attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func TestConsolidator_CheckpointRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	sys := NewSystem(SystemConfig{
		WorkingCapacity: 4,
		Episodic:        EpisodicConfig{EmbeddingDim: 3},
		Now:             clock,
	}, zap.NewNop())

	store := newFlakySnapshotStore(2)
	c := NewConsolidator(sys, ConsolidatorConfig{Now: clock}, store, zap.NewNop())
	c.SetRetryConfig(persistence.RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2,
	})

	var report TickReport
	c.OnTick(func(r TickReport) { report = r })
	require.NoError(t, c.TickNow(context.Background()))

	assert.NoError(t, report.CheckpointErr)
	assert.Equal(t, 3, store.attempts(), "two failures then one success")

	_, err := store.Load(context.Background())
	assert.NoError(t, err)
}

func TestConsolidator_CheckpointExhaustionIsReportedNotFatal(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	sys := NewSystem(SystemConfig{
		WorkingCapacity: 4,
		Episodic:        EpisodicConfig{EmbeddingDim: 3},
		Now:             clock,
	}, zap.NewNop())

	store := newFlakySnapshotStore(100)
	c := NewConsolidator(sys, ConsolidatorConfig{Now: clock}, store, zap.NewNop())
	c.SetRetryConfig(persistence.RetryConfig{
		MaxRetries:        1,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        time.Millisecond,
		BackoffMultiplier: 2,
	})

	var report TickReport
	c.OnTick(func(r TickReport) { report = r })

	// The tick itself succeeds; only the checkpoint is reported failed.
	require.NoError(t, c.TickNow(context.Background()))
	require.Error(t, report.CheckpointErr)
	assert.True(t, types.IsErrorCode(report.CheckpointErr, types.ErrCodePersistence))
	assert.Equal(t, 2, store.attempts())
}

func TestConsolidator_StopThenRestart(t *testing.T) {
	t.Parallel()

	sys := NewSystem(SystemConfig{
		WorkingCapacity: 4,
		Episodic:        EpisodicConfig{EmbeddingDim: 3},
	}, zap.NewNop())
	c := NewConsolidator(sys, ConsolidatorConfig{Interval: 50 * time.Millisecond}, nil, zap.NewNop())

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Start(ctx))
		time.Sleep(5 * time.Millisecond)
		require.NoError(t, c.Stop())
		time.Sleep(15 * time.Millisecond)
		assert.False(t, c.Running(), "iteration %d", i)
	}
}

func TestConsolidator_StartStopStateErrors(t *testing.T) {
	t.Parallel()

	sys := NewSystem(SystemConfig{
		WorkingCapacity: 4,
		Episodic:        EpisodicConfig{EmbeddingDim: 3},
	}, zap.NewNop())
	c := NewConsolidator(sys, ConsolidatorConfig{Interval: time.Hour}, nil, zap.NewNop())

	ctx := context.Background()

	require.Error(t, c.Stop(), "stopping a stopped consolidator fails")

	require.NoError(t, c.Start(ctx))
	require.Error(t, c.Start(ctx), "double start fails")

	require.NoError(t, c.Stop())

	// Stop closed the channel so the loop can exit.
	select {
	case <-c.stopCh:
	default:
		t.Fatal("stopCh was not closed after Stop()")
	}
}

func TestConsolidator_NudgeTriggersOpportunisticTick(t *testing.T) {
	t.Parallel()

	sys := NewSystem(SystemConfig{
		WorkingCapacity: 4,
		Episodic:        EpisodicConfig{EmbeddingDim: 3},
	}, zap.NewNop())
	c := NewConsolidator(sys, ConsolidatorConfig{Interval: time.Hour}, nil, zap.NewNop())

	reports := make(chan TickReport, 1)
	c.OnTick(func(r TickReport) {
		select {
		case reports <- r:
		default:
		}
	})

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	c.Nudge()

	select {
	case r := <-reports:
		assert.NoError(t, r.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("nudge did not trigger a tick")
	}
}

func TestClusterBySimilarity(t *testing.T) {
	t.Parallel()

	rec := func(content string, embedding []float64) types.MemoryRecord {
		return types.MemoryRecord{Content: content, Embedding: embedding}
	}

	t.Run("GroupsSimilarRecords", func(t *testing.T) {
		clusters := clusterBySimilarity([]types.MemoryRecord{
			rec("a1", []float64{1, 0, 0}),
			rec("a2", []float64{0.9, 0.1, 0}),
			rec("b1", []float64{0, 1, 0}),
		}, 0.65)

		require.Len(t, clusters, 2)
		assert.Len(t, clusters[0].members, 2)
		assert.Len(t, clusters[1].members, 1)
		assert.Greater(t, clusters[0].cohesion(), 0.9)
	})

	t.Run("EmptyInput", func(t *testing.T) {
		assert.Empty(t, clusterBySimilarity(nil, 0.65))
	})

	t.Run("AllDistinct", func(t *testing.T) {
		clusters := clusterBySimilarity([]types.MemoryRecord{
			rec("x", []float64{1, 0, 0}),
			rec("y", []float64{0, 1, 0}),
			rec("z", []float64{0, 0, 1}),
		}, 0.65)
		assert.Len(t, clusters, 3)
	})
}
