package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/mindflow/types"
)

// SystemConfig assembles the per-store configurations.
type SystemConfig struct {
	WorkingCapacity int
	Episodic        EpisodicConfig
	Graph           GraphConfig
	// Traits seeds the personality vector; nil selects the defaults.
	Traits types.TraitVector

	// Now is used for testing and propagates to stores that have no
	// clock of their own. Defaults to time.Now.
	Now func() time.Time
}

// System composes the four memory structures behind a single
// reader-writer lock that carries the cognitive cycle's concurrency
// contract: reflection reads take the lock shared, while foreground
// stores and consolidation ticks take it exclusive. Ticks therefore
// never interleave with each other or with a store, and every recall
// observes the state as of its shared acquisition.
//
// The working context sits outside the lock: consolidation never
// touches it and admission must never wait on a tick.
type System struct {
	mu          sync.RWMutex
	working     *WorkingContext
	episodic    *EpisodicStore
	graph       *SemanticGraph
	personality *PersonalityState
	logger      *zap.Logger
	now         func() time.Time
}

// NewSystem builds an empty memory system. A nil logger disables logging.
func NewSystem(cfg SystemConfig, logger *zap.Logger) *System {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if cfg.Episodic.Now == nil {
		cfg.Episodic.Now = now
	}
	if cfg.Graph.Now == nil {
		cfg.Graph.Now = now
	}
	return &System{
		working:     NewWorkingContext(cfg.WorkingCapacity),
		episodic:    NewEpisodicStore(cfg.Episodic, logger),
		graph:       NewSemanticGraph(cfg.Graph, logger),
		personality: NewPersonalityState(cfg.Traits),
		logger:      logger.With(zap.String("component", "memory_system")),
		now:         now,
	}
}

// Working returns the attention window. Admission and snapshotting are
// lock-free with respect to consolidation.
func (s *System) Working() *WorkingContext {
	return s.working
}

// Personality returns the trait state. Reads may trail an in-flight
// consolidation update.
func (s *System) Personality() *PersonalityState {
	return s.personality
}

// Recall ranks episodic records against query under shared access.
func (s *System) Recall(ctx context.Context, query []float64, k int) ([]ScoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.episodic.Recall(ctx, query, k)
}

// RecallRelated spreads activation from concept under shared access.
func (s *System) RecallRelated(ctx context.Context, concept string, depth int) ([]ActivatedConcept, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.RecallRelated(ctx, concept, depth)
}

// KnowsConcept reports whether the semantic graph holds a node for label.
func (s *System) KnowsConcept(label string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Has(label)
}

// Store writes a record under exclusive access, waiting out any active
// readers and any running consolidation tick.
func (s *System) Store(ctx context.Context, rec types.MemoryRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.episodic.Store(ctx, rec)
}

// Stats reports counts across the stores under shared access.
func (s *System) Stats() types.MemoryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return types.MemoryStats{
		WorkingItems:   s.working.Len(),
		EpisodicCount:  s.episodic.CountByKind(types.MemoryEpisodic),
		SemanticCount:  s.episodic.CountByKind(types.MemorySemantic),
		ConceptNodes:   s.graph.NodeCount(),
		ConceptEdges:   s.graph.EdgeCount(),
		MeanImportance: s.episodic.MeanImportance(),
	}
}

// ExportState captures the durable structures as a snapshot under shared
// access.
func (s *System) ExportState() types.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return types.Snapshot{
		ID:          uuid.NewString(),
		SavedAt:     s.now(),
		Episodic:    s.episodic.Export(),
		Semantic:    s.graph.Export(),
		Personality: s.personality.Traits(),
	}
}

// RestoreState replaces the durable structures from a snapshot under
// exclusive access. The working context is transient and left untouched.
func (s *System) RestoreState(snap types.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.episodic.Restore(snap.Episodic)
	s.graph.Restore(snap.Semantic)
	s.personality.Restore(snap.Personality)
	s.logger.Info("memory state restored",
		zap.Int("episodic_records", len(snap.Episodic)),
		zap.Int("concept_nodes", len(snap.Semantic.Nodes)),
		zap.Time("saved_at", snap.SavedAt))
}
