package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/mindflow/types"
)

// EpisodicConfig tunes the long-term record store. Zero fields fall back
// to the defaults below.
type EpisodicConfig struct {
	// EmbeddingDim is the required embedding length for stored records.
	EmbeddingDim int
	// Alpha, Beta and Gamma weight similarity, recency and importance in
	// the recall score. They are expected to sum to 1.
	Alpha float64
	Beta  float64
	Gamma float64
	// RecencyHalfLife is the age at which the recency component of the
	// recall score halves.
	RecencyHalfLife time.Duration
	// ReinforcementBoost is added to a record's importance each time it
	// is recalled, capped at 1.
	ReinforcementBoost float64
	// DefaultDecayRate is the per-hour decay lambda assigned to records
	// stored without one.
	DefaultDecayRate float64

	// Now is used for testing. Defaults to time.Now.
	Now func() time.Time
}

func (c EpisodicConfig) withDefaults() EpisodicConfig {
	if c.EmbeddingDim <= 0 {
		c.EmbeddingDim = 16
	}
	if c.Alpha == 0 && c.Beta == 0 && c.Gamma == 0 {
		c.Alpha, c.Beta, c.Gamma = 0.5, 0.3, 0.2
	}
	if c.RecencyHalfLife <= 0 {
		c.RecencyHalfLife = 24 * time.Hour
	}
	if c.ReinforcementBoost <= 0 {
		c.ReinforcementBoost = 0.05
	}
	if c.DefaultDecayRate <= 0 {
		c.DefaultDecayRate = 0.01
	}
	return c
}

// ScoredRecord is a recall hit with its composite score and the score's
// similarity and recency components.
type ScoredRecord struct {
	Record     types.MemoryRecord
	Score      float64
	Similarity float64
	Recency    float64
}

// EpisodicStore holds memory records in memory, ranks them for recall by
// a weighted blend of similarity, recency and importance, and applies
// time-based importance decay. Recall reinforces the returned records.
//
// All methods are safe for concurrent use.
type EpisodicStore struct {
	mu      sync.RWMutex
	cfg     EpisodicConfig
	records map[string]*types.MemoryRecord
	logger  *zap.Logger
	now     func() time.Time
}

// NewEpisodicStore creates an empty store. A nil logger disables logging.
func NewEpisodicStore(cfg EpisodicConfig, logger *zap.Logger) *EpisodicStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &EpisodicStore{
		cfg:     cfg.withDefaults(),
		records: make(map[string]*types.MemoryRecord),
		logger:  logger.With(zap.String("component", "episodic_store")),
		now:     now,
	}
}

// Store validates and inserts a record, returning its assigned ID.
// Records with a mismatched embedding length, empty content, negative
// importance or negative decay rate are rejected with an InvalidRecord
// error. A zero decay rate is replaced by the configured default and a
// zero kind defaults to episodic. Timestamps already set on the record
// are kept; zero timestamps are stamped with the current time.
func (s *EpisodicStore) Store(ctx context.Context, rec types.MemoryRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(rec.Embedding) != s.cfg.EmbeddingDim {
		return "", types.Errorf(types.ErrCodeInvalidRecord,
			"embedding dimension mismatch: got %d want %d", len(rec.Embedding), s.cfg.EmbeddingDim)
	}
	if rec.Content == "" {
		return "", types.NewError(types.ErrCodeInvalidRecord, "record content is empty")
	}
	if rec.Importance < 0 {
		return "", types.Errorf(types.ErrCodeInvalidRecord, "negative importance %v", rec.Importance)
	}
	if rec.DecayRate < 0 {
		return "", types.Errorf(types.ErrCodeInvalidRecord, "negative decay rate %v", rec.DecayRate)
	}

	stored := cloneRecord(rec)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.Kind == "" {
		stored.Kind = types.MemoryEpisodic
	}
	if stored.DecayRate == 0 {
		stored.DecayRate = s.cfg.DefaultDecayRate
	}
	now := s.now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.LastAccessedAt.IsZero() {
		stored.LastAccessedAt = stored.CreatedAt
	}
	stored.Importance = clamp(stored.Importance, 0, 1)
	stored.Valence = clamp(stored.Valence, -1, 1)

	s.mu.Lock()
	s.records[stored.ID] = &stored
	s.mu.Unlock()

	s.logger.Debug("stored memory record",
		zap.String("id", stored.ID),
		zap.String("kind", string(stored.Kind)),
		zap.Float64("importance", stored.Importance))
	return stored.ID, nil
}

// Recall returns up to k records ranked by the weighted blend of query
// similarity, recency and importance, ties broken by most recent
// creation. Each returned record is reinforced: its last-access time is
// refreshed and its importance nudged up by the configured boost, capped
// at 1. The returned copies reflect the reinforced values.
func (s *EpisodicStore) Recall(ctx context.Context, query []float64, k int) ([]ScoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(query) != s.cfg.EmbeddingDim {
		return nil, types.Errorf(types.ErrCodeInvalidRecord,
			"query dimension mismatch: got %d want %d", len(query), s.cfg.EmbeddingDim)
	}
	if k <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	scored := make([]ScoredRecord, 0, len(s.records))
	for _, rec := range s.records {
		sim := similarity01(query, rec.Embedding)
		rec01 := s.recency(rec.LastAccessedAt, now)
		scored = append(scored, ScoredRecord{
			Record:     *rec,
			Score:      s.cfg.Alpha*sim + s.cfg.Beta*rec01 + s.cfg.Gamma*rec.Importance,
			Similarity: sim,
			Recency:    rec01,
		})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Record.CreatedAt.After(scored[j].Record.CreatedAt)
	})
	if len(scored) > k {
		scored = scored[:k]
	}

	for i := range scored {
		rec := s.records[scored[i].Record.ID]
		rec.LastAccessedAt = now
		rec.Importance = clamp(rec.Importance+s.cfg.ReinforcementBoost, 0, 1)
		scored[i].Record = cloneRecord(*rec)
	}

	s.logger.Debug("recall completed", zap.Int("hits", len(scored)), zap.Int("k", k))
	return scored, nil
}

// recency maps the time since last access onto (0,1] with an exponential
// half-life curve. Future access times count as fully recent.
func (s *EpisodicStore) recency(lastAccess, now time.Time) float64 {
	age := now.Sub(lastAccess)
	if age <= 0 {
		return 1
	}
	return math.Exp(-math.Ln2 * age.Hours() / s.cfg.RecencyHalfLife.Hours())
}

// Decay multiplies every record's importance by exp(-decayRate * hours
// since last access) and returns the number of records touched. Decay
// never removes records and never drives importance negative.
func (s *EpisodicStore) Decay(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	decayed := 0
	for _, rec := range s.records {
		hours := now.Sub(rec.LastAccessedAt).Hours()
		if hours <= 0 {
			continue
		}
		rec.Importance *= math.Exp(-rec.DecayRate * hours)
		decayed++
	}
	return decayed
}

// Prune removes records that are both below the importance floor and
// older than maxAge, measured from creation. It returns the number of
// records removed.
func (s *EpisodicStore) Prune(now time.Time, floor float64, maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.records {
		if rec.Importance < floor && now.Sub(rec.CreatedAt) > maxAge {
			delete(s.records, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("pruned memory records", zap.Int("removed", removed))
	}
	return removed
}

// AccessedSince returns copies of all records last accessed after t,
// in no particular order.
func (s *EpisodicStore) AccessedSince(t time.Time) []types.MemoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.MemoryRecord, 0)
	for _, rec := range s.records {
		if rec.LastAccessedAt.After(t) {
			out = append(out, cloneRecord(*rec))
		}
	}
	return out
}

// Export returns copies of all records ordered by creation time, oldest
// first, for snapshotting.
func (s *EpisodicStore) Export() []types.MemoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.MemoryRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, cloneRecord(*rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Restore replaces the store's contents with the given records.
func (s *EpisodicStore) Restore(records []types.MemoryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*types.MemoryRecord, len(records))
	for _, rec := range records {
		stored := cloneRecord(rec)
		s.records[stored.ID] = &stored
	}
}

// Len reports the number of stored records.
func (s *EpisodicStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// CountByKind reports how many records carry the given kind tag.
func (s *EpisodicStore) CountByKind(kind types.MemoryKind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, rec := range s.records {
		if rec.Kind == kind {
			n++
		}
	}
	return n
}

// MeanImportance reports the average importance across all records, or 0
// for an empty store.
func (s *EpisodicStore) MeanImportance() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return 0
	}
	var sum float64
	for _, rec := range s.records {
		sum += rec.Importance
	}
	return sum / float64(len(s.records))
}

func cloneRecord(rec types.MemoryRecord) types.MemoryRecord {
	out := rec
	out.Embedding = make([]float64, len(rec.Embedding))
	copy(out.Embedding, rec.Embedding)
	return out
}
