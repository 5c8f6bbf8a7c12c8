package types

import "time"

// MemoryKind discriminates the two durable memory variants. The set is
// closed: every record is exactly one of these, with fixed semantics per
// kind, rather than an open-ended map of ad-hoc categories.
type MemoryKind string

const (
	// MemoryEpisodic records one concrete timestamped experience.
	MemoryEpisodic MemoryKind = "episodic"
	// MemorySemantic is a consolidated digest distilled from a cluster of
	// episodic records. Written only by the consolidation engine.
	MemorySemantic MemoryKind = "semantic"
)

// MemoryRecord is one durable memory entry. Once stored it is owned
// exclusively by the episodic store: callers keep copies, never aliases.
type MemoryRecord struct {
	ID        string     `json:"id"`
	Kind      MemoryKind `json:"kind"`
	Content   string     `json:"content"`
	Embedding []float64  `json:"embedding"`
	// Importance in [0,1]: retrieval rank weight and survival score under
	// pruning. Decay lowers it between accesses; recall reinforces it.
	Importance float64 `json:"importance"`
	// Valence is the emotional charge of the remembered interaction, [-1,1].
	Valence        float64   `json:"valence"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	// DecayRate is the per-hour exponential decay constant, > 0.
	DecayRate float64 `json:"decay_rate"`
}

// Age returns the time since the record was created.
func (r *MemoryRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}

// ConceptNode is one labeled concept of the semantic graph.
type ConceptNode struct {
	Label string `json:"label"`
	// Weight accumulates reinforcement from consolidation windows.
	Weight         float64   `json:"weight"`
	TouchCount     int       `json:"touch_count"`
	FirstSeen      time.Time `json:"first_seen"`
	LastReinforced time.Time `json:"last_reinforced"`
}

// ConceptEdge is an undirected weighted association between two concepts,
// strengthened each time both appear in the same consolidation window.
// A < B lexically by construction, so each pair has one canonical edge.
type ConceptEdge struct {
	A              string    `json:"a"`
	B              string    `json:"b"`
	Weight         float64   `json:"weight"`
	LastReinforced time.Time `json:"last_reinforced"`
}

// MemoryStats summarizes the state of the memory subsystem.
type MemoryStats struct {
	WorkingItems   int     `json:"working_items"`
	EpisodicCount  int     `json:"episodic_count"`
	SemanticCount  int     `json:"semantic_count"`
	ConceptNodes   int     `json:"concept_nodes"`
	ConceptEdges   int     `json:"concept_edges"`
	MeanImportance float64 `json:"mean_importance"`
}
