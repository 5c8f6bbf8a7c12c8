package types

import "time"

// GraphSnapshot is the serializable form of the semantic graph.
type GraphSnapshot struct {
	Nodes []ConceptNode `json:"nodes"`
	Edges []ConceptEdge `json:"edges"`
}

// Snapshot is the persistence triple: everything durable about an agent
// instance. Saved at consolidation checkpoints and on orderly shutdown,
// loaded on startup.
type Snapshot struct {
	ID          string         `json:"id"`
	SavedAt     time.Time      `json:"saved_at"`
	Episodic    []MemoryRecord `json:"episodic"`
	Semantic    GraphSnapshot  `json:"semantic"`
	Personality TraitVector    `json:"personality"`
}

// Clone returns a deep copy sharing no slices or maps with the original.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Episodic = make([]MemoryRecord, len(s.Episodic))
	for i, rec := range s.Episodic {
		out.Episodic[i] = rec
		out.Episodic[i].Embedding = append([]float64(nil), rec.Embedding...)
	}
	out.Semantic.Nodes = append([]ConceptNode(nil), s.Semantic.Nodes...)
	out.Semantic.Edges = append([]ConceptEdge(nil), s.Semantic.Edges...)
	out.Personality = s.Personality.Clone()
	return out
}
