package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/mindflow/agent/memory"
	"github.com/BaSui01/mindflow/internal/metrics"
	"github.com/BaSui01/mindflow/types"
)

const (
	// maxFocusConcepts bounds the concept labels a session reasons over.
	maxFocusConcepts = 5
	// questionSupportFloor: below this mean activation a later iteration
	// poses a question instead of asserting a reflection.
	questionSupportFloor = 0.05
)

// ReflectionEngineConfig bounds the internal reasoning loop. Zero
// fields fall back to the defaults below.
type ReflectionEngineConfig struct {
	// MaxIterations caps the reflecting-phase iterations.
	MaxIterations int
	// ConfidenceThreshold ends the loop early once reached.
	ConfidenceThreshold float64
	// ActivationDepth bounds semantic spreading activation.
	ActivationDepth int
	// RecallK is how many episodic records seed a session.
	RecallK int

	// Now is used for testing. Defaults to time.Now.
	Now func() time.Time
}

func (c ReflectionEngineConfig) withDefaults() ReflectionEngineConfig {
	if c.MaxIterations < 1 {
		c.MaxIterations = 5
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		c.ConfidenceThreshold = 0.75
	}
	if c.ActivationDepth < 1 {
		c.ActivationDepth = 2
	}
	if c.RecallK <= 0 {
		c.RecallK = 5
	}
	return c
}

// ReflectionEngine runs one bounded reasoning session per stimulus: it
// recalls from the memory system under shared access, then iterates
// thoughts until the confidence threshold or the iteration cap fires.
// Thought content is derived deterministically from the percept, the
// recalled records and the personality state.
type ReflectionEngine struct {
	mem     *memory.System
	cfg     ReflectionEngineConfig
	metrics *metrics.Collector
	logger  *zap.Logger
	now     func() time.Time
}

// NewReflectionEngine creates an engine over mem. A nil logger disables
// logging.
func NewReflectionEngine(mem *memory.System, cfg ReflectionEngineConfig, logger *zap.Logger) *ReflectionEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &ReflectionEngine{
		mem:    mem,
		cfg:    cfg.withDefaults(),
		logger: logger.With(zap.String("component", "reflection")),
		now:    now,
	}
}

// SetMetrics attaches a collector for recall instrumentation. Call
// before the first Reflect; nil disables recording.
func (e *ReflectionEngine) SetMetrics(c *metrics.Collector) {
	e.metrics = c
}

// session is the transient state of one reflection run. It owns its
// thought chain until Reflect returns, then is discarded.
type session struct {
	id      string
	phase   types.Phase
	percept *types.Percept
	window  []types.ContextItem

	recalled []memory.ScoredRecord
	// relevance is the mean composite recall score, fixed after the
	// recalling phase.
	relevance float64
	// activation maps concept labels to their best spreading-activation
	// value around the percept's focus concepts.
	activation map[string]float64
	// focus is the ordered concept list iterations rotate through.
	focus []string

	chain *types.ThoughtChain
}

func (s *session) advance(to types.Phase) error {
	if !CanTransition(s.phase, to) {
		return ErrInvalidTransition{From: s.phase, To: to}
	}
	s.phase = to
	return nil
}

func (s *session) append(th types.Thought) {
	s.chain.Thoughts = append(s.chain.Thoughts, th)
}

// Reflect runs one session over percept and the given working-context
// window. Cancellation mid-loop returns the best chain accumulated so
// far tagged aborted, not an error.
func (e *ReflectionEngine) Reflect(ctx context.Context, percept *types.Percept, window []types.ContextItem) (*types.ThoughtChain, error) {
	if percept == nil {
		return nil, types.NewError(types.ErrCodePerception, "no percept to reflect on")
	}

	start := e.now()
	s := &session{
		id:      uuid.NewString(),
		phase:   types.PhasePerceiving,
		percept: percept,
		window:  append([]types.ContextItem(nil), window...),
		chain:   &types.ThoughtChain{StartedAt: start},
	}
	s.chain.SessionID = s.id

	if err := s.advance(types.PhaseRecalling); err != nil {
		return nil, err
	}
	e.recall(ctx, s)
	s.append(e.observe(s))

	if err := s.advance(types.PhaseReflecting); err != nil {
		return nil, err
	}

	tag := types.TagCompleted
	iterations := 0
	for i := 1; i <= e.cfg.MaxIterations; i++ {
		if ctx.Err() != nil {
			tag = types.TagAborted
			break
		}
		th := e.iterate(s, i)
		s.append(th)
		iterations = i

		e.logger.Debug("reflection iteration",
			zap.String("session_id", s.id),
			zap.Int("iteration", i),
			zap.String("type", string(th.Type)),
			zap.Float64("confidence", th.Confidence))

		if th.Confidence >= e.cfg.ConfidenceThreshold {
			break
		}
	}

	if tag == types.TagAborted {
		if err := s.advance(types.PhaseTerminated); err != nil {
			return nil, err
		}
	} else {
		if s.chain.Final().Confidence < e.cfg.ConfidenceThreshold {
			tag = types.TagLowConfidence
		}
		if err := s.advance(types.PhaseDeciding); err != nil {
			return nil, err
		}
		s.append(e.conclude(s, tag))
		if err := s.advance(types.PhaseTerminated); err != nil {
			return nil, err
		}
	}

	s.chain.Tag = tag
	s.chain.Confidence = s.chain.Final().Confidence
	s.chain.Iterations = iterations
	s.chain.CompletedAt = e.now()

	e.logger.Info("reflection session completed",
		zap.String("session_id", s.id),
		zap.String("tag", string(tag)),
		zap.Int("iterations", iterations),
		zap.Int("thoughts", len(s.chain.Thoughts)),
		zap.Float64("confidence", s.chain.Confidence),
		zap.Duration("duration", s.chain.CompletedAt.Sub(start)))

	return s.chain, nil
}

// recall fills the session with episodic hits, focus concepts and their
// spreading activation. Failures degrade to an empty recall set; the
// session still reflects, just with less support.
func (e *ReflectionEngine) recall(ctx context.Context, s *session) {
	hits, err := e.mem.Recall(ctx, s.percept.Embedding, e.cfg.RecallK)
	if err != nil {
		e.logger.Warn("recall failed, reflecting without memories",
			zap.String("session_id", s.id), zap.Error(err))
	}
	s.recalled = hits
	if e.metrics != nil {
		e.metrics.RecordRecall("episodic", len(hits))
	}

	if len(hits) > 0 {
		var sum float64
		for _, h := range hits {
			sum += h.Score
		}
		s.relevance = clampf(sum/float64(len(hits)), 0, 1)
	}

	s.focus = memory.ExtractConcepts(s.percept.Content, 3)
	for _, h := range hits {
		if len(s.focus) >= maxFocusConcepts {
			break
		}
		for _, label := range memory.ExtractConcepts(h.Record.Content, 2) {
			if len(s.focus) >= maxFocusConcepts {
				break
			}
			if !containsLabel(s.focus, label) {
				s.focus = append(s.focus, label)
			}
		}
	}

	s.activation = make(map[string]float64)
	for _, label := range s.focus {
		if e.mem.KnowsConcept(label) {
			s.activation[label] = 1.0
		}
		related, err := e.mem.RecallRelated(ctx, label, e.cfg.ActivationDepth)
		if err != nil {
			continue
		}
		if e.metrics != nil {
			e.metrics.RecordRecall("semantic", len(related))
		}
		for _, rc := range related {
			if rc.Activation > s.activation[rc.Label] {
				s.activation[rc.Label] = rc.Activation
			}
		}
	}
}

// observe builds the seed thought from the percept, the strongest
// recall and the dominant personality trait.
func (e *ReflectionEngine) observe(s *session) types.Thought {
	content := "noticing: " + s.percept.Content
	if len(s.recalled) > 0 {
		content += fmt.Sprintf("; reminded of %q", snippet(s.recalled[0].Record.Content))
	}
	if name, val := e.mem.Personality().Traits().Dominant(); name != "" && val > 0 {
		content += ", viewed with " + name
	}

	var recalledValence float64
	for _, h := range s.recalled {
		recalledValence += h.Record.Valence
	}
	if len(s.recalled) > 0 {
		recalledValence /= float64(len(s.recalled))
	}

	th := types.Thought{
		Content:   content,
		Type:      types.ThoughtObservation,
		Valence:   clampf(0.5*s.percept.Valence+0.5*recalledValence, -1, 1),
		Phase:     s.phase,
		Timestamp: e.now(),
		Concepts:  s.thoughtConcepts(0),
	}
	th.Confidence = e.confidence(s, th)
	return th
}

// iterate builds the i-th reflecting thought, conditioned on the chain
// so far: even iterations revisit the previous thought, low-support
// later iterations pose a question, the rest assert a reflection.
func (e *ReflectionEngine) iterate(s *session, i int) types.Thought {
	prev := s.chain.Final()
	concepts := s.thoughtConcepts(i)
	support := s.conceptSupport(concepts)

	var ttype types.ThoughtType
	var content string
	switch {
	case i%2 == 0:
		ttype = types.ThoughtMetaReflection
		content = fmt.Sprintf("reexamining the thought that %q", snippet(prev.Content))
	case i > 1 && support < questionSupportFloor:
		ttype = types.ThoughtQuestion
		switch len(concepts) {
		case 0:
			content = "what is this actually about?"
		case 1:
			content = fmt.Sprintf("is %s even the right frame here?", concepts[0])
		default:
			content = fmt.Sprintf("what actually connects %s and %s?", concepts[0], concepts[1])
		}
	default:
		ttype = types.ThoughtReflection
		switch len(concepts) {
		case 0:
			content = "turning the stimulus over without a clear anchor"
		case 1:
			content = fmt.Sprintf("dwelling on %s", concepts[0])
		default:
			content = fmt.Sprintf("considering how %s relates to %s", concepts[0], concepts[1])
		}
	}

	th := types.Thought{
		Content:   content,
		Type:      ttype,
		Valence:   clampf(0.7*prev.Valence+0.3*s.percept.Valence, -1, 1),
		Phase:     s.phase,
		Timestamp: e.now(),
		Concepts:  concepts,
	}
	th.Confidence = e.confidence(s, th)
	return th
}

// conclude closes the chain with a deciding-phase thought carrying the
// confidence the loop ended on.
func (e *ReflectionEngine) conclude(s *session, tag types.ChainTag) types.Thought {
	prev := s.chain.Final()
	content := fmt.Sprintf("concluding: %s", snippet(prev.Content))
	if tag == types.TagLowConfidence {
		content = fmt.Sprintf("settling without certainty on: %s", snippet(prev.Content))
	}
	return types.Thought{
		Content:    content,
		Type:       types.ThoughtConclusion,
		Confidence: prev.Confidence,
		Valence:    prev.Valence,
		Phase:      s.phase,
		Timestamp:  e.now(),
		Concepts:   s.thoughtConcepts(0),
	}
}

// confidence scores a candidate thought before it is appended:
// weighted recall relevance, chain coherence including the candidate,
// and semantic support of its focus concepts.
func (e *ReflectionEngine) confidence(s *session, th types.Thought) float64 {
	coherence := s.coherenceWith(th)
	support := s.conceptSupport(th.Concepts)
	return clampf(0.5*s.relevance+0.3*coherence+0.2*support, 0, 1)
}

// coherenceWith is the fraction of consecutive thought pairs sharing a
// concept, were th appended to the chain now.
func (s *session) coherenceWith(th types.Thought) float64 {
	n := len(s.chain.Thoughts)
	if n == 0 {
		return 0
	}
	shared := 0
	for i := 1; i < n; i++ {
		if sharesConcept(s.chain.Thoughts[i-1].Concepts, s.chain.Thoughts[i].Concepts) {
			shared++
		}
	}
	if sharesConcept(s.chain.Thoughts[n-1].Concepts, th.Concepts) {
		shared++
	}
	return float64(shared) / float64(n)
}

// conceptSupport is the mean activation of the given concepts; unknown
// concepts contribute zero.
func (s *session) conceptSupport(concepts []string) float64 {
	if len(concepts) == 0 {
		return 0
	}
	var sum float64
	for _, c := range concepts {
		sum += s.activation[c]
	}
	return sum / float64(len(concepts))
}

// thoughtConcepts rotates through the session focus so consecutive
// thoughts overlap on one concept.
func (s *session) thoughtConcepts(i int) []string {
	n := len(s.focus)
	switch {
	case n == 0:
		return nil
	case n == 1:
		return []string{s.focus[0]}
	}
	a := s.focus[abs(i-1)%n]
	b := s.focus[i%n]
	if a == b {
		return []string{a}
	}
	return []string{a, b}
}

func sharesConcept(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func containsLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

func snippet(content string) string {
	const max = 60
	r := []rune(content)
	if len(r) <= max {
		return content
	}
	return string(r[:max]) + "..."
}

func clampf(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
