package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/mindflow/agent/memory"
	"github.com/BaSui01/mindflow/types"
)

func newEngineSystem(t *testing.T, now func() time.Time) *memory.System {
	t.Helper()
	return memory.NewSystem(memory.SystemConfig{
		WorkingCapacity: 8,
		Episodic:        memory.EpisodicConfig{EmbeddingDim: 3},
		Now:             now,
	}, zap.NewNop())
}

func TestReflectionEngineConfig_Defaults(t *testing.T) {
	t.Parallel()

	e := NewReflectionEngine(newEngineSystem(t, nil), ReflectionEngineConfig{}, nil)
	assert.Equal(t, 5, e.cfg.MaxIterations)
	assert.InDelta(t, 0.75, e.cfg.ConfidenceThreshold, 1e-9)
	assert.Equal(t, 2, e.cfg.ActivationDepth)
	assert.Equal(t, 5, e.cfg.RecallK)
}

func TestReflectionEngine_NilPercept(t *testing.T) {
	t.Parallel()

	e := NewReflectionEngine(newEngineSystem(t, nil), ReflectionEngineConfig{}, nil)
	_, err := e.Reflect(context.Background(), nil, nil)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrCodePerception))
}

// With an empty store nothing supports the chain, so an unreachable
// threshold must drive the loop to the iteration cap.
func TestReflectionEngine_IterationCapTagsLowConfidence(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	sys := newEngineSystem(t, func() time.Time { return now })
	e := NewReflectionEngine(sys, ReflectionEngineConfig{
		MaxIterations:       5,
		ConfidenceThreshold: 0.99,
		Now:                 func() time.Time { return now },
	}, zap.NewNop())

	chain, err := e.Reflect(context.Background(), &types.Percept{
		Content:   "the lighthouse beam over the bay at dusk",
		Embedding: []float64{1, 0, 0},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, types.TagLowConfidence, chain.Tag)
	assert.Equal(t, 5, chain.Iterations)
	require.Len(t, chain.Thoughts, 7)
	assert.NotEmpty(t, chain.SessionID)
	assert.Equal(t, now, chain.StartedAt)
	assert.Equal(t, now, chain.CompletedAt)

	// Observation seed, five loop thoughts, one conclusion.
	wantTypes := []types.ThoughtType{
		types.ThoughtObservation,
		types.ThoughtReflection,
		types.ThoughtMetaReflection,
		types.ThoughtQuestion,
		types.ThoughtMetaReflection,
		types.ThoughtQuestion,
		types.ThoughtConclusion,
	}
	for i, want := range wantTypes {
		assert.Equal(t, want, chain.Thoughts[i].Type, "thought %d", i)
	}

	assert.Equal(t, types.PhaseRecalling, chain.Thoughts[0].Phase)
	for i := 1; i <= 5; i++ {
		assert.Equal(t, types.PhaseReflecting, chain.Thoughts[i].Phase, "thought %d", i)
	}
	assert.Equal(t, types.PhaseDeciding, chain.Thoughts[6].Phase)

	// No recall relevance and no semantic support: confidence is pure
	// chain coherence, which the concept rotation keeps at 1.
	assert.InDelta(t, 0.3, chain.Confidence, 1e-9)
	assert.Contains(t, chain.Thoughts[0].Content, "noticing: the lighthouse beam over the bay at dusk")
	assert.Contains(t, chain.Thoughts[0].Content, "viewed with introspection")
	assert.NotContains(t, chain.Thoughts[0].Content, "reminded of")
	assert.Equal(t, "considering how bay relates to beam", chain.Thoughts[1].Content)
	assert.Contains(t, chain.Thoughts[6].Content, "settling without certainty on:")
}

func TestReflectionEngine_ThresholdEndsLoopEarly(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	sys := newEngineSystem(t, func() time.Time { return now })
	ctx := context.Background()

	for _, content := range []string{
		"the tide pulls the harbor boats in",
		"harbor boats rocking at the tide line",
	} {
		_, err := sys.Store(ctx, types.MemoryRecord{
			Content:    content,
			Embedding:  []float64{1, 0, 0},
			Importance: 0.5,
		})
		require.NoError(t, err)
	}

	e := NewReflectionEngine(sys, ReflectionEngineConfig{
		MaxIterations:       5,
		ConfidenceThreshold: 0.6,
		Now:                 func() time.Time { return now },
	}, zap.NewNop())

	chain, err := e.Reflect(ctx, &types.Percept{
		Content:   "the tide pulls the harbor boats",
		Embedding: []float64{1, 0, 0},
		Valence:   0.4,
	}, nil)
	require.NoError(t, err)

	// Both records score 0.9 (similarity 1, recency 1, importance 0.5),
	// so the first loop thought reaches 0.5*0.9 + 0.3*1.0 = 0.75.
	assert.Equal(t, types.TagCompleted, chain.Tag)
	assert.Equal(t, 1, chain.Iterations)
	require.Len(t, chain.Thoughts, 3)
	assert.InDelta(t, 0.75, chain.Confidence, 1e-9)

	assert.Equal(t, types.ThoughtObservation, chain.Thoughts[0].Type)
	assert.Equal(t, types.ThoughtReflection, chain.Thoughts[1].Type)
	assert.Equal(t, types.ThoughtConclusion, chain.Thoughts[2].Type)

	assert.Contains(t, chain.Thoughts[0].Content, "reminded of")
	assert.Equal(t, "considering how boats relates to harbor", chain.Thoughts[1].Content)
	assert.Contains(t, chain.Thoughts[2].Content, "concluding:")

	// Seed valence blends the percept with the neutral recalled records.
	assert.InDelta(t, 0.2, chain.Thoughts[0].Valence, 1e-9)
}

func TestReflectionEngine_CancellationAbortsWithoutError(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	sys := newEngineSystem(t, func() time.Time { return now })
	e := NewReflectionEngine(sys, ReflectionEngineConfig{
		Now: func() time.Time { return now },
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chain, err := e.Reflect(ctx, &types.Percept{
		Content:   "a door slams somewhere upstairs",
		Embedding: []float64{0, 1, 0},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, types.TagAborted, chain.Tag)
	assert.Equal(t, 0, chain.Iterations)
	require.Len(t, chain.Thoughts, 1)
	assert.Equal(t, types.ThoughtObservation, chain.Final().Type)
	assert.Equal(t, types.PhaseRecalling, chain.Final().Phase)
	assert.Equal(t, now, chain.CompletedAt)
}

// A consolidated semantic graph must raise session confidence over the
// same episodic contents without one, and strong support keeps the
// chain from falling back to questions.
func TestReflectionEngine_SemanticSupportRaisesConfidence(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	ctx := context.Background()

	seed := func(t *testing.T) *memory.System {
		t.Helper()
		sys := newEngineSystem(t, clock)
		for _, rec := range []types.MemoryRecord{
			{Content: "the lighthouse beam swept across the bay", Embedding: []float64{1, 0, 0}, Importance: 0.5},
			{Content: "lighthouse beam flickered over the bay at night", Embedding: []float64{0.9, 0.1, 0}, Importance: 0.5},
		} {
			_, err := sys.Store(ctx, rec)
			require.NoError(t, err)
		}
		return sys
	}

	bare := seed(t)
	consolidated := seed(t)
	cons := memory.NewConsolidator(consolidated, memory.ConsolidatorConfig{Now: clock}, nil, zap.NewNop())
	require.NoError(t, cons.TickNow(ctx))

	percept := &types.Percept{
		Content:   "a lighthouse beam over the bay at dusk",
		Embedding: []float64{1, 0, 0},
	}
	cfg := ReflectionEngineConfig{MaxIterations: 5, ConfidenceThreshold: 0.99, Now: clock}

	bareChain, err := NewReflectionEngine(bare, cfg, zap.NewNop()).Reflect(ctx, percept, nil)
	require.NoError(t, err)
	supportedChain, err := NewReflectionEngine(consolidated, cfg, zap.NewNop()).Reflect(ctx, percept, nil)
	require.NoError(t, err)

	assert.Greater(t, supportedChain.Confidence, bareChain.Confidence)

	hasQuestion := func(c *types.ThoughtChain) bool {
		for _, th := range c.Thoughts {
			if th.Type == types.ThoughtQuestion {
				return true
			}
		}
		return false
	}
	assert.True(t, hasQuestion(bareChain))
	assert.False(t, hasQuestion(supportedChain))
}

// Consecutive thoughts must share a focus concept so the chain reads as
// one line of thought rather than disconnected fragments.
func TestReflectionEngine_ChainsShareConcepts(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	sys := newEngineSystem(t, func() time.Time { return now })
	e := NewReflectionEngine(sys, ReflectionEngineConfig{
		MaxIterations:       5,
		ConfidenceThreshold: 0.99,
		Now:                 func() time.Time { return now },
	}, zap.NewNop())

	chain, err := e.Reflect(context.Background(), &types.Percept{
		Content:   "rain on the window and coffee going cold",
		Embedding: []float64{0, 0, 1},
	}, nil)
	require.NoError(t, err)
	require.Greater(t, len(chain.Thoughts), 2)

	for i := 1; i < len(chain.Thoughts); i++ {
		assert.True(t, sharesConcept(chain.Thoughts[i-1].Concepts, chain.Thoughts[i].Concepts),
			"thoughts %d and %d share no concept", i-1, i)
	}
	for _, th := range chain.Thoughts {
		assert.GreaterOrEqual(t, th.Confidence, 0.0)
		assert.LessOrEqual(t, th.Confidence, 1.0)
		assert.GreaterOrEqual(t, th.Valence, -1.0)
		assert.LessOrEqual(t, th.Valence, 1.0)
	}
}
