package types

import "time"

// Percept is the normalized representation of one external stimulus, as
// produced by the perception collaborator. A Percept is immutable once
// created; the cycle never rewrites its content or embedding.
type Percept struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Embedding []float64 `json:"embedding"`
	// Valence is the affective charge the perception collaborator attributes
	// to the stimulus, in [-1,1]. Zero when the collaborator reports none.
	Valence   float64   `json:"valence,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ContextItemKind discriminates entries of the working context.
type ContextItemKind string

const (
	ContextPercept ContextItemKind = "percept"
	ContextThought ContextItemKind = "thought"
)

// ContextItem is one entry of the working context: either a recent percept
// or a recent thought, reduced to what short-term attention retains.
type ContextItem struct {
	Kind      ContextItemKind `json:"kind"`
	Content   string          `json:"content"`
	Valence   float64         `json:"valence,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
