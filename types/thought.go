package types

import "time"

// Phase identifies the cognitive cycle phase a thought originated in.
// The reflection engine drives its session through these phases as a
// state machine; the transition table lives in the agent package.
type Phase string

const (
	PhasePerceiving Phase = "perceiving"
	PhaseRecalling  Phase = "recalling"
	PhaseReflecting Phase = "reflecting"
	PhaseDeciding   Phase = "deciding"
	PhaseTerminated Phase = "terminated"
)

// ThoughtType classifies what kind of cognitive step a thought represents.
type ThoughtType string

const (
	// ThoughtObservation is the seed thought formed directly from the
	// stimulus and recalled memories.
	ThoughtObservation ThoughtType = "observation"
	// ThoughtReflection is an ordinary reflective step over the stimulus.
	ThoughtReflection ThoughtType = "reflection"
	// ThoughtMetaReflection is a reflective step about a prior thought.
	ThoughtMetaReflection ThoughtType = "meta_reflection"
	// ThoughtQuestion marks a step where support was too weak to assert
	// anything, so the chain poses an open question instead.
	ThoughtQuestion ThoughtType = "question"
	// ThoughtConclusion closes a chain during the deciding phase.
	ThoughtConclusion ThoughtType = "conclusion"
)

// Thought is one step of an internal reflection chain. Thoughts are
// immutable once appended to their chain.
type Thought struct {
	Content    string      `json:"content"`
	Type       ThoughtType `json:"type"`
	Confidence float64     `json:"confidence"` // [0,1]
	Valence    float64     `json:"valence"`    // [-1,1]
	Phase      Phase       `json:"phase"`
	Timestamp  time.Time   `json:"timestamp"`
	// Concepts are the semantic-graph labels the thought drew on. Used for
	// chain-coherence scoring and consolidation, not rendered to callers.
	Concepts []string `json:"concepts,omitempty"`
}

// ChainTag describes how a reflection session ended.
type ChainTag string

const (
	// TagCompleted: the chain crossed the confidence threshold.
	TagCompleted ChainTag = "completed"
	// TagLowConfidence: the iteration cap fired before the threshold.
	TagLowConfidence ChainTag = "low_confidence"
	// TagAborted: the session was cancelled mid-reflection; the chain is
	// the best accumulated so far.
	TagAborted ChainTag = "aborted"
)

// ThoughtChain is the ordered result of one reflection session.
type ThoughtChain struct {
	SessionID   string    `json:"session_id"`
	Thoughts    []Thought `json:"thoughts"`
	Tag         ChainTag  `json:"tag"`
	Confidence  float64   `json:"confidence"` // confidence of the final thought
	Iterations  int       `json:"iterations"` // reflecting-phase iterations only
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Final returns the last thought of the chain, or a zero Thought for an
// empty chain.
func (c *ThoughtChain) Final() Thought {
	if len(c.Thoughts) == 0 {
		return Thought{}
	}
	return c.Thoughts[len(c.Thoughts)-1]
}

// MaxConfidence returns the highest confidence reached anywhere in the
// chain. Used when deriving the importance of the stored interaction.
func (c *ThoughtChain) MaxConfidence() float64 {
	max := 0.0
	for _, t := range c.Thoughts {
		if t.Confidence > max {
			max = t.Confidence
		}
	}
	return max
}

// MeanValence returns the average valence across the chain, 0 for an
// empty chain.
func (c *ThoughtChain) MeanValence() float64 {
	if len(c.Thoughts) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range c.Thoughts {
		sum += t.Valence
	}
	return sum / float64(len(c.Thoughts))
}
