package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mindflow/agent/persistence"
	"github.com/BaSui01/mindflow/types"
)

// ConsolidatorConfig tunes the background maintenance tick. Zero fields
// fall back to the defaults below.
type ConsolidatorConfig struct {
	// Interval between scheduled ticks.
	Interval time.Duration
	// ClusterSimilarity is the centroid similarity a record must reach
	// to join a cluster.
	ClusterSimilarity float64
	// ClusterMinSize is the smallest cluster that feeds the semantic
	// graph.
	ClusterMinSize int
	// ImportanceFloor and MaxAge select prune victims: records below the
	// floor and older than MaxAge are removed.
	ImportanceFloor float64
	MaxAge          time.Duration
	// LearningRate is the eta of the personality moving average.
	LearningRate float64
	// ConceptsPerCluster caps how many concepts one cluster contributes.
	ConceptsPerCluster int

	// Now is used for testing. Defaults to time.Now.
	Now func() time.Time
}

func (c ConsolidatorConfig) withDefaults() ConsolidatorConfig {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.ClusterSimilarity <= 0 || c.ClusterSimilarity > 1 {
		c.ClusterSimilarity = 0.65
	}
	if c.ClusterMinSize <= 0 {
		c.ClusterMinSize = 2
	}
	if c.ImportanceFloor <= 0 {
		c.ImportanceFloor = 0.05
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 30 * 24 * time.Hour
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 0.1
	}
	if c.ConceptsPerCluster <= 0 {
		c.ConceptsPerCluster = 3
	}
	return c
}

// TickReport summarizes one consolidation tick for observers.
type TickReport struct {
	At       time.Time
	Duration time.Duration
	// Decayed is the number of records whose importance was reduced.
	Decayed int
	// Recent is the number of records accessed since the previous tick.
	Recent int
	// Clusters counts the clusters large enough to reach the graph.
	Clusters int
	// Pruned is the number of records removed.
	Pruned int
	// Err is the failure that aborted the tick, if any.
	Err error
	// CheckpointErr is a snapshot failure after a successful tick.
	CheckpointErr error
}

// Consolidator runs the background maintenance cycle: importance decay,
// similarity clustering of recently accessed records into the semantic
// graph, personality drift, pruning, and an optional snapshot checkpoint.
// It is the sole writer of decay, prune, graph and personality updates.
//
// The whole mutating pipeline of a tick runs under the memory system's
// exclusive lock, so ticks never interleave with each other or with
// foreground stores. The checkpoint runs after the lock is released so
// persistence I/O never stalls the cycle.
//
// A stopped consolidator can be started again.
type Consolidator struct {
	sys   *System
	cfg   ConsolidatorConfig
	store persistence.SnapshotStore
	retry persistence.RetryConfig

	onTick func(TickReport)

	running bool
	stopCh  chan struct{}
	nudgeCh chan struct{}
	mu      sync.Mutex

	// lastTick bounds the clustering window. Read and written only while
	// the system's exclusive lock is held.
	lastTick time.Time

	logger *zap.Logger
	now    func() time.Time
}

// NewConsolidator creates a consolidator over sys. A nil store disables
// checkpoints; a nil logger disables logging.
func NewConsolidator(sys *System, cfg ConsolidatorConfig, store persistence.SnapshotStore, logger *zap.Logger) *Consolidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Consolidator{
		sys:     sys,
		cfg:     cfg.withDefaults(),
		store:   store,
		retry:   persistence.DefaultRetryConfig(),
		nudgeCh: make(chan struct{}, 1),
		logger:  logger.With(zap.String("component", "consolidator")),
		now:     now,
	}
}

// SetRetryConfig overrides the checkpoint retry policy. Call before Start.
func (c *Consolidator) SetRetryConfig(cfg persistence.RetryConfig) {
	c.retry = cfg
}

// OnTick registers an observer invoked after every tick, scheduled or
// nudged. Call before Start.
func (c *Consolidator) OnTick(fn func(TickReport)) {
	c.onTick = fn
}

// Start launches the background loop. It fails if already running.
func (c *Consolidator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("consolidator already running")
	}
	c.stopCh = make(chan struct{})
	c.running = true
	c.mu.Unlock()

	go c.run(ctx)

	c.logger.Info("consolidator started", zap.Duration("interval", c.cfg.Interval))
	return nil
}

// Stop halts the background loop. It fails if not running.
func (c *Consolidator) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return fmt.Errorf("consolidator not running")
	}
	if c.stopCh != nil {
		close(c.stopCh)
	}
	c.running = false

	c.logger.Info("consolidator stopped")
	return nil
}

// Running reports whether the background loop is active.
func (c *Consolidator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Nudge requests an opportunistic tick without waiting for the next
// scheduled one. It never blocks; a nudge while one is already pending
// is coalesced.
func (c *Consolidator) Nudge() {
	select {
	case c.nudgeCh <- struct{}{}:
	default:
	}
}

// TickNow runs one tick synchronously and returns its failure, if any.
// Intended for shutdown flushes and tests.
func (c *Consolidator) TickNow(ctx context.Context) error {
	report := c.tick(ctx)
	c.report(report)
	return report.Err
}

func (c *Consolidator) run(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	tickTimeout := 5 * time.Minute
	if c.cfg.Interval > 0 {
		tickTimeout = c.cfg.Interval / 2
	}

	for {
		select {
		case <-ticker.C:
			c.timedTick(ctx, tickTimeout)
		case <-c.nudgeCh:
			c.timedTick(ctx, tickTimeout)
		case <-c.stopCh:
			c.logger.Debug("consolidator loop stopped")
			return
		case <-ctx.Done():
			c.logger.Debug("consolidator loop cancelled")
			return
		}
	}
}

func (c *Consolidator) timedTick(ctx context.Context, timeout time.Duration) {
	tickCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	c.report(c.tick(tickCtx))
}

func (c *Consolidator) report(r TickReport) {
	if r.Err != nil {
		c.logger.Error("consolidation tick failed", zap.Error(r.Err))
	} else {
		c.logger.Debug("consolidation tick completed",
			zap.Int("decayed", r.Decayed),
			zap.Int("recent", r.Recent),
			zap.Int("clusters", r.Clusters),
			zap.Int("pruned", r.Pruned),
			zap.Duration("duration", r.Duration))
	}
	if c.onTick != nil {
		c.onTick(r)
	}
}

// tick runs the maintenance pipeline. A failed step aborts the tick and
// leaves the window start unchanged, so the next tick re-covers it.
func (c *Consolidator) tick(ctx context.Context) TickReport {
	start := c.now()
	report := TickReport{At: start}

	report.Err = c.tickLocked(ctx, start, &report)
	report.Duration = c.now().Sub(start)
	if report.Err != nil {
		return report
	}

	if c.store != nil {
		if err := c.checkpoint(ctx); err != nil {
			report.CheckpointErr = err
			c.logger.Error("checkpoint failed", zap.Error(err))
		}
	}
	return report
}

func (c *Consolidator) tickLocked(ctx context.Context, start time.Time, report *TickReport) error {
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return types.NewError(types.ErrCodeConsolidation, "tick cancelled before start").WithCause(err)
	}

	since := c.lastTick
	report.Decayed = c.sys.episodic.Decay(start)

	recent := c.sys.episodic.AccessedSince(since)
	report.Recent = len(recent)

	episodicOnly := make([]types.MemoryRecord, 0, len(recent))
	for _, rec := range recent {
		if rec.Kind == types.MemoryEpisodic {
			episodicOnly = append(episodicOnly, rec)
		}
	}

	clusters := clusterBySimilarity(episodicOnly, c.cfg.ClusterSimilarity)
	mentioned, novel := 0, 0
	for _, cl := range clusters {
		if len(cl.members) < c.cfg.ClusterMinSize {
			continue
		}
		concepts := clusterConcepts(cl, c.cfg.ConceptsPerCluster)
		if len(concepts) == 0 {
			continue
		}
		for _, label := range concepts {
			mentioned++
			if !c.sys.graph.Has(label) {
				novel++
			}
		}
		cohesion := cl.cohesion()
		if err := c.sys.graph.Reinforce(ctx, concepts, cohesion); err != nil {
			return types.NewError(types.ErrCodeConsolidation, "graph update failed").WithCause(err)
		}
		digest := types.MemoryRecord{
			Kind:       types.MemorySemantic,
			Content:    "consolidated: " + strings.Join(concepts, ", "),
			Embedding:  cl.centroid,
			Importance: cohesion,
			Valence:    cl.meanValence(),
			DecayRate:  c.sys.episodic.cfg.DefaultDecayRate / 2,
		}
		if _, err := c.sys.episodic.Store(ctx, digest); err != nil {
			return types.NewError(types.ErrCodeConsolidation, "digest store failed").WithCause(err)
		}
		report.Clusters++
	}

	if len(recent) > 0 {
		signals := behaviorSignals(recent, len(clusters), len(episodicOnly), mentioned, novel)
		c.sys.personality.Apply(signals, c.cfg.LearningRate)
	}

	report.Pruned = c.sys.episodic.Prune(start, c.cfg.ImportanceFloor, c.cfg.MaxAge)

	c.lastTick = start
	return nil
}

// behaviorSignals derives personality drift targets from the tick's
// window: valence feeds empathy, concept novelty feeds curiosity,
// record importance feeds skepticism inversely, cluster diversity feeds
// creativity, and the share of consolidated records feeds introspection.
func behaviorSignals(recent []types.MemoryRecord, clusters, episodic, mentioned, novel int) map[string]float64 {
	var absValence, importance float64
	semantic := 0
	for _, rec := range recent {
		if rec.Valence < 0 {
			absValence -= rec.Valence
		} else {
			absValence += rec.Valence
		}
		importance += rec.Importance
		if rec.Kind == types.MemorySemantic {
			semantic++
		}
	}
	n := float64(len(recent))

	signals := map[string]float64{
		types.TraitEmpathy:       absValence / n,
		types.TraitSkepticism:    1 - importance/n,
		types.TraitIntrospection: float64(semantic) / n,
	}
	if mentioned > 0 {
		signals[types.TraitCuriosity] = float64(novel) / float64(mentioned)
	}
	if episodic > 0 {
		signals[types.TraitCreativity] = float64(clusters) / float64(episodic)
	}
	return signals
}

func (c *Consolidator) checkpoint(ctx context.Context) error {
	snap := c.sys.ExportState()

	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		err := c.store.Save(ctx, snap)
		if err == nil {
			c.logger.Debug("checkpoint saved", zap.String("snapshot_id", snap.ID))
			return nil
		}
		lastErr = err

		if attempt < c.retry.MaxRetries {
			select {
			case <-ctx.Done():
				return types.NewError(types.ErrCodePersistence, "checkpoint cancelled").WithCause(ctx.Err())
			case <-time.After(c.retry.CalculateBackoff(attempt)):
			}
		}
	}
	return types.NewError(types.ErrCodePersistence, "checkpoint save exhausted retries").
		WithCause(lastErr).
		WithRetryable(true)
}

// recordCluster groups records whose embeddings sit near a shared
// centroid.
type recordCluster struct {
	members  []types.MemoryRecord
	centroid []float64
}

// cohesion is the mean similarity of members to the centroid.
func (cl recordCluster) cohesion() float64 {
	if len(cl.members) == 0 {
		return 0
	}
	var sum float64
	for _, rec := range cl.members {
		sum += similarity01(rec.Embedding, cl.centroid)
	}
	return sum / float64(len(cl.members))
}

func (cl recordCluster) meanValence() float64 {
	if len(cl.members) == 0 {
		return 0
	}
	var sum float64
	for _, rec := range cl.members {
		sum += rec.Valence
	}
	return sum / float64(len(cl.members))
}

// clusterBySimilarity greedily grows clusters: each unassigned record
// seeds a cluster and absorbs later records whose similarity to the
// running centroid clears the threshold.
func clusterBySimilarity(records []types.MemoryRecord, threshold float64) []recordCluster {
	assigned := make([]bool, len(records))
	clusters := make([]recordCluster, 0)

	for i := range records {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		cl := recordCluster{
			members:  []types.MemoryRecord{records[i]},
			centroid: append([]float64(nil), records[i].Embedding...),
		}
		for j := i + 1; j < len(records); j++ {
			if assigned[j] {
				continue
			}
			if similarity01(cl.centroid, records[j].Embedding) >= threshold {
				assigned[j] = true
				cl.members = append(cl.members, records[j])
				cl.centroid = clusterCentroid(cl.members)
			}
		}
		clusters = append(clusters, cl)
	}
	return clusters
}

func clusterCentroid(members []types.MemoryRecord) []float64 {
	embeddings := make([][]float64, len(members))
	for i, rec := range members {
		embeddings[i] = rec.Embedding
	}
	return meanVector(embeddings)
}

// clusterConcepts extracts the cluster's dominant concepts from the
// concatenated member contents.
func clusterConcepts(cl recordCluster, max int) []string {
	var b strings.Builder
	for _, rec := range cl.members {
		b.WriteString(rec.Content)
		b.WriteString(" ")
	}
	return ExtractConcepts(b.String(), max)
}
